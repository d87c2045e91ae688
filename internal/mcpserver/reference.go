package mcpserver

// ParameterReference describes the sway parameter set that LLM consumers
// pass to apply_sway and save_preset.
const ParameterReference = `# Sway Parameter Reference

Parameters are a flat JSON object. Every key is optional; missing keys
keep the value of the base preset (or the defaults when no preset is
named). Unknown keys are ignored.

## Enums

| key        | values                              | default      |
|------------|-------------------------------------|--------------|
| mode       | procedural, physics, hybrid         | procedural   |
| rootMotion | pinned, baseline                    | pinned       |
| decayShape | linear, smoothstep (empty = mode's) | empty        |
| enabled    | true, false                         | true         |

## Numbers

| key           | unit / range                 | notes                                  |
|---------------|------------------------------|----------------------------------------|
| amplitude     | px, >= 0                     | peak offset of the tip                 |
| frequency     | Hz, >= 0                     |                                        |
| phaseOffset   | degrees                      |                                        |
| chainDelay    | seconds per link             | delays the wave down the chain         |
| noiseAmount   | percent, 0..100              | share of coherent noise in the motion  |
| noiseScale    | factor                       | time scale of the noise                |
| damping       | >= 0                         | physics velocity loss                  |
| stiffness     | >= 0                         | physics spring toward rest             |
| gravity       | px/s^2                       | physics and hybrid only                |
| windDirection | degrees, 0 = +x              |                                        |
| windStrength  | px/s^2                       |                                        |
| physicsBlend  | percent, 0..100              | hybrid only: share of the physics part |
| decayStart    | seconds                      | motion fades out from here             |
| decayDuration | seconds, > 0                 | length of the fade                     |

## Chains

- A chain needs at least two pins on a layer with a puppet rig.
- Without an explicit order, pins are chained root first: the topmost
  pin (smallest y) or the first selected pin, then nearest neighbour.
- The root has chain index 0. Pinned root motion keeps it still.

## Presets

Built-in presets: cloth, custom, hair, rope, tail. Saved presets live
as YAML files in the preset directory and override built-ins of the
same name.
`

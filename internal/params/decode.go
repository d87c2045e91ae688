package params

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/sway/internal/apperr"
)

// numericFields maps the wire key of every numeric parameter to its field.
func (s *Set) numericFields() map[string]*float64 {
	return map[string]*float64{
		"amplitude":     &s.Amplitude,
		"frequency":     &s.Frequency,
		"phaseOffset":   &s.PhaseOffset,
		"chainDelay":    &s.ChainDelay,
		"noiseAmount":   &s.NoiseAmount,
		"noiseScale":    &s.NoiseScale,
		"damping":       &s.Damping,
		"stiffness":     &s.Stiffness,
		"gravity":       &s.Gravity,
		"windDirection": &s.WindDirection,
		"windStrength":  &s.WindStrength,
		"physicsBlend":  &s.PhysicsBlend,
		"decayStart":    &s.DecayStart,
		"decayDuration": &s.DecayDuration,
	}
}

// Keys lists the numeric parameter keys accepted by FromMap.
func Keys() []string {
	return []string{
		"amplitude", "frequency", "phaseOffset", "chainDelay", "noiseAmount", "noiseScale",
		"damping", "stiffness", "gravity", "windDirection", "windStrength", "physicsBlend",
		"decayStart", "decayDuration",
	}
}

// FromMap overlays a flat key/value payload on base. Unknown keys are
// ignored; missing keys keep the base value. The result is normalized and
// validated.
func FromMap(base Set, m map[string]any) (Set, error) {
	out := base
	fields := out.numericFields()

	for key, raw := range m {
		switch key {
		case "mode":
			str, err := asString(raw)
			if err != nil {
				return Set{}, fmt.Errorf("%w: mode: %v", apperr.ErrInvalidParameters, err)
			}
			out.Mode = Mode(strings.ToLower(str))
		case "rootMotion":
			str, err := asString(raw)
			if err != nil {
				return Set{}, fmt.Errorf("%w: rootMotion: %v", apperr.ErrInvalidParameters, err)
			}
			out.RootMotion = RootMotion(strings.ToLower(str))
		case "decayShape":
			str, err := asString(raw)
			if err != nil {
				return Set{}, fmt.Errorf("%w: decayShape: %v", apperr.ErrInvalidParameters, err)
			}
			out.DecayShape = DecayShape(strings.ToLower(str))
		case "enabled":
			b, err := asBool(raw)
			if err != nil {
				return Set{}, fmt.Errorf("%w: enabled: %v", apperr.ErrInvalidParameters, err)
			}
			out.Enabled = b
		default:
			ptr, ok := fields[key]
			if !ok {
				continue
			}
			f, err := asFloat(raw)
			if err != nil {
				return Set{}, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidParameters, key, err)
			}
			*ptr = f
		}
	}

	out.Normalize()
	if err := out.Validate(); err != nil {
		return Set{}, err
	}
	return out, nil
}

// Parse decodes a YAML or JSON parameter payload into a flat map and
// overlays it on base.
func Parse(data []byte, base Set) (Set, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Set{}, fmt.Errorf("%w: %v", apperr.ErrInvalidParameters, err)
	}
	return FromMap(base, m)
}

// ToMap flattens the set back to its wire form.
func (s Set) ToMap() map[string]any {
	out := map[string]any{
		"mode":    string(s.Mode),
		"enabled": s.Enabled,
	}
	for key, ptr := range s.numericFields() {
		out[key] = *ptr
	}
	if s.RootMotion != "" {
		out["rootMotion"] = string(s.RootMotion)
	}
	if s.DecayShape != "" {
		out["decayShape"] = string(s.DecayShape)
	}
	return out
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return s, nil
}

func asBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	default:
		f, err := asFloat(v)
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
}

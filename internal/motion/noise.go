package motion

import "github.com/ojrac/opensimplex-go"

// field is the shared coherent noise field. It is read-only after
// construction, so concurrent evaluations may sample it freely.
var field = opensimplex.NewNormalized(0)

// noise01 samples the field at (x, y), in [0, 1).
func noise01(x, y float64) float64 {
	return field.Eval2(x, y)
}

// noiseSigned samples the field and maps it to [-1, 1).
func noiseSigned(x, y float64) float64 {
	return noise01(x, y)*2 - 1
}

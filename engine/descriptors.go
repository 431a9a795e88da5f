package engine

import "math"

// DefaultDescriptors is the closed parameter table: the scene uniforms,
// sketch variables and shader uniforms a rig exposes. Values only ever
// flow into names declared here.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		// Scene plane
		{Name: "sphereRoughness", Plane: PlaneScene, Min: 0, Max: 1, Step: 0.01, Default: 0.35},
		{Name: "sphereMetalness", Plane: PlaneScene, Min: 0, Max: 1, Step: 0.01, Default: 0.8},
		{Name: "rotationX", Plane: PlaneScene, Min: -2, Max: 2, Step: 0.01, Default: 0.2},
		{Name: "rotationY", Plane: PlaneScene, Min: -2, Max: 2, Step: 0.01, Default: 0.1},
		{Name: "rotationZ", Plane: PlaneScene, Min: -2, Max: 2, Step: 0.01, Default: 0},
		{Name: "bloomStrength", Plane: PlaneScene, Min: 0, Max: 3, Step: 0.01, Default: 0.8},
		{Name: "bloomRadius", Plane: PlaneScene, Min: 0, Max: 1, Step: 0.01, Default: 0.4},
		{Name: "lightIntensity", Plane: PlaneScene, Min: 0, Max: 10, Step: 0.1, Default: 5},
		// Squared sweep: fine control close in, fast far out
		{Name: "cameraDistance", Plane: PlaneScene, Min: 1, Max: 50, Step: 0.1, Default: 8,
			Normalize: func(raw, max int) float64 {
				x := float64(raw) / float64(max)
				return x * x
			}},
		{Name: "hueShift", Plane: PlaneScene, Min: 0, Max: 360, Step: 1, Default: 0},
		{Name: "wireframe", Plane: PlaneScene, Min: 0, Max: 1, Step: 1, Default: 0, Bool: true},

		// Sketch plane
		{Name: "p5Speed", Plane: PlaneSketch, Min: 0, Max: 4, Step: 0.05, Default: 1},
		{Name: "p5Density", Plane: PlaneSketch, Min: 0, Max: 1, Step: 0.01, Default: 0.5},
		{Name: "p5Trail", Plane: PlaneSketch, Min: 0, Max: 1, Step: 0.01, Default: 0.2},
		{Name: "p5Invert", Plane: PlaneSketch, Min: 0, Max: 1, Step: 1, Default: 0, Bool: true},

		// Shader plane
		{Name: "shaderMix", Plane: PlaneShader, Min: 0, Max: 1, Step: 0.01, Default: 0},
		{Name: "shaderWarp", Plane: PlaneShader, Min: 0, Max: 2, Step: 0.01, Default: 0.3},
		// Feedback at 1.0 never decays, keep headroom
		{Name: "shaderFeedback", Plane: PlaneShader, Min: 0, Max: 0.98, Step: 0.01, Default: 0},
		// 14-bit so pixel counts sweep smoothly over the whole range
		{Name: "shaderPixelate", Plane: PlaneShader, Min: 1, Max: 256, Step: 1, Bits: 14, Default: 1,
			Normalize: func(raw, max int) float64 {
				// log sweep keeps the low pixel counts usable
				x := float64(raw) / float64(max)
				return (math.Pow(2, 8*x) - 1) / 255.0
			}},
	}
}

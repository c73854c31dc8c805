package types

import "strings"

// Tuning families (HS_TUNE_FAMILY_*).
const (
	TuneGeneric uint32 = 0
	TuneSNB     uint32 = 1
	TuneIVB     uint32 = 2
	TuneHSW     uint32 = 3
	TuneSLM     uint32 = 4
	TuneBDW     uint32 = 5
	TuneSKL     uint32 = 6
	TuneSKX     uint32 = 7
	TuneGLM     uint32 = 8
	TuneICL     uint32 = 9
	TuneICX     uint32 = 10
)

// CPU feature bits (HS_CPU_FEATURES_*).
const (
	CPUAVX2       uint32 = 1 << 2
	CPUAVX512     uint32 = 1 << 3
	CPUAVX512VBMI uint32 = 1 << 4
)

// Platform describes the target CPU a database is compiled for.
type Platform struct {
	Tune        uint32 `json:"tune" yaml:"tune"`
	CPUFeatures uint32 `json:"cpu_features" yaml:"cpu_features"`
	Reserved1   uint32 `json:"reserved1" yaml:"reserved1"`
	Reserved2   uint32 `json:"reserved2" yaml:"reserved2"`
}

// FeatureNames returns the names of the CPU features set.
func (p Platform) FeatureNames() string {
	var names []string
	if p.CPUFeatures&CPUAVX2 != 0 {
		names = append(names, "AVX2")
	}
	if p.CPUFeatures&CPUAVX512 != 0 {
		names = append(names, "AVX512")
	}
	if p.CPUFeatures&CPUAVX512VBMI != 0 {
		names = append(names, "AVX512VBMI")
	}
	return strings.Join(names, " ")
}

var cpuFeatureNames = map[string]uint32{
	"avx2":       CPUAVX2,
	"avx512":     CPUAVX512,
	"avx512vbmi": CPUAVX512VBMI,
}

// CPUFeatureByName returns the feature bit for a lowercase feature name.
func CPUFeatureByName(name string) (uint32, bool) {
	v, ok := cpuFeatureNames[name]
	return v, ok
}

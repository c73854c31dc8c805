package portable

import (
	"golang.org/x/sys/cpu"

	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// hostPlatform describes the current CPU. Tuning is always generic; the
// feature bits follow the Hyperscan definitions.
func hostPlatform() types.Platform {
	p := types.Platform{Tune: types.TuneGeneric}
	if cpu.X86.HasAVX2 {
		p.CPUFeatures |= types.CPUAVX2
	}
	if cpu.X86.HasAVX512F && cpu.X86.HasAVX512BW && cpu.X86.HasAVX512VL {
		p.CPUFeatures |= types.CPUAVX512
	}
	if cpu.X86.HasAVX512VBMI {
		p.CPUFeatures |= types.CPUAVX512VBMI
	}
	return p
}

// runnable reports whether a database built for p can run here.
func runnable(p types.Platform) bool {
	return p.CPUFeatures&^hostPlatform().CPUFeatures == 0
}

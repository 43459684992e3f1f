package macho

import (
	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machedit/pkg/object"
)

// cpuSubtypeMask strips the capability bits, including CPU_SUBTYPE_LIB64
// (0x80000000), from a cpusubtype.
const cpuSubtypeMask types.CPUSubtype = 0x00ffffff

// cpuType maps a raw cputype/cpusubtype pair to the object model. Unknown
// values fall back to x86.
func cpuType(cpu types.CPU, subtype types.CPUSubtype) object.CPUType {
	sub := subtype & cpuSubtypeMask
	switch cpu {
	case types.CPU386:
		return object.X86
	case types.CPUAmd64:
		if sub == types.CPUSubtypeX86_64H {
			return object.X86_64H
		}
		return object.X86_64
	case types.CPUArm:
		switch sub {
		case types.CPUSubtypeArmV6:
			return object.ARMV6
		case types.CPUSubtypeArmV7:
			return object.ARMV7
		case types.CPUSubtypeArmV7S:
			return object.ARMV7S
		case types.CPUSubtypeArmV7K:
			return object.ARMV7K
		}
		return object.ARM
	case types.CPUArm64:
		if sub == types.CPUSubtypeArm64E {
			return object.ARM64E
		}
		return object.ARM64
	case types.CPUArm6432:
		return object.ARM64_32
	case types.CPUPpc:
		return object.PPC
	case types.CPUPpc64:
		return object.PPC64
	default:
		return object.X86
	}
}

package builder

import (
	"regexp"
	"strings"

	"github.com/notargets/aclkernel/utils"
)

// Double-precision extensions, the vendor one wins when the device advertises it
const (
	ExtensionFP64    = "cl_khr_fp64"
	ExtensionAMDFP64 = "cl_amd_fp64"
)

var doubleUsage = regexp.MustCompile(`\bdouble(2|3|4|8|16)?\b`)

// UsesDouble reports whether kernel source text declares or casts double precision values
func UsesDouble(source string) bool {
	return doubleUsage.MatchString(source)
}

// GenerateExtensions scans the finished body and returns the pragmas it needs
func (kb *Builder) GenerateExtensions(body string) (string, error) {
	var sb strings.Builder
	if UsesDouble(body) {
		switch {
		case kb.Caps.ExtensionAvailable(ExtensionAMDFP64):
			sb.WriteString(pragma(ExtensionAMDFP64))
		case kb.Caps.ExtensionAvailable(ExtensionFP64):
			sb.WriteString(pragma(ExtensionFP64))
		default:
			return "", utils.Contract("GenerateExtensions", "device has no double precision support")
		}
	}
	for _, ext := range kb.Config.Extensions {
		if !kb.Caps.ExtensionAvailable(ext) {
			return "", utils.Contract("GenerateExtensions", "extension %s is not available on the device", ext)
		}
		sb.WriteString(pragma(ext))
	}
	return sb.String(), nil
}

func pragma(ext string) string {
	return "#pragma OPENCL EXTENSION " + ext + " : enable\n"
}

package loaders

import (
	"os"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic uint32 = 0x07230203

var ErrInvalidShader = errors.New("invalid SPIR-V module")

// ReadSPIRV reads a compiled shader and returns its words.
func ReadSPIRV(path string) ([]uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read shader %s", path)
	}
	return DecodeSPIRV(data)
}

// DecodeSPIRV checks the header of a SPIR-V binary and converts it to
// little endian words.
func DecodeSPIRV(data []byte) ([]uint32, error) {
	// The header alone is five words.
	if len(data) < 20 || len(data)%4 != 0 {
		return nil, errors.Wrapf(ErrInvalidShader, "%d bytes", len(data))
	}
	code := bytesToBytecode(data)
	if code[0] != spirvMagic {
		return nil, errors.Wrapf(ErrInvalidShader, "magic %#08x", code[0])
	}
	return code, nil
}

// LoadShaderModule creates a shader module from the file at path. A missing
// or malformed file is logged and reported through ok; the caller decides
// whether it can go on without the module.
func LoadShaderModule(dev gpu.Device, path string) (gpu.ShaderModule, bool) {
	code, err := ReadSPIRV(path)
	if err != nil {
		core.LogWarn("could not load shader module %s: %s", path, err)
		return 0, false
	}
	module, r := dev.CreateShaderModule(code)
	if err := gpu.Check(r, "vkCreateShaderModule"); err != nil {
		core.LogWarn("could not create shader module %s: %s", path, err)
		return 0, false
	}
	core.LogDebug("shader module %s loaded (%d words)", path, len(code))
	return module, true
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}

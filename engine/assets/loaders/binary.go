package loaders

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/chewman/engine/core"
)

const spirvMagic = 0x07230203

// LoadSPIRV checks that data holds little endian SPIR-V words and returns it
// unchanged. name is only used in errors.
func LoadSPIRV(name string, data []byte) ([]byte, error) {
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, fmt.Errorf("shader binary %s: size %d is not a multiple of 4: %w", name, len(data), core.ErrUnsupportedResource)
	}
	if magic := binary.LittleEndian.Uint32(data); magic != spirvMagic {
		return nil, fmt.Errorf("shader binary %s: bad SPIR-V magic %#x: %w", name, magic, core.ErrUnsupportedResource)
	}
	return data, nil
}

// Bytecode reinterprets SPIR-V bytes as words.
func Bytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return byteCode
}

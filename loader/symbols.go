package loader

import (
	"debug/elf"
	"fmt"
)

// ScriptArea locates the loader's script buffer in its binary. The
// returned address is the virtual address the buffer occupies once the
// kernel maps the loader (the loader is built as a fixed-position
// executable, so the link-time address is the runtime address).
func ScriptArea(loaderPath string) (uint64, error) {
	f, err := elf.Open(loaderPath)
	if err != nil {
		return 0, fmt.Errorf("loader: open %s: %w", loaderPath, err)
	}
	defer f.Close()

	if f.Type == elf.ET_DYN {
		return 0, fmt.Errorf("loader: %s is position independent; build it without PIE", loaderPath)
	}

	syms, err := f.Symbols()
	if err != nil {
		return 0, fmt.Errorf("loader: read symbols of %s: %w", loaderPath, err)
	}
	for _, sym := range syms {
		if sym.Name == ScriptAreaSymbol {
			if sym.Size < AreaSize {
				return 0, fmt.Errorf("loader: script area of %s is %d bytes, want %d",
					loaderPath, sym.Size, AreaSize)
			}
			return sym.Value, nil
		}
	}
	return 0, fmt.Errorf("loader: symbol %s not found in %s (stripped binary?)",
		ScriptAreaSymbol, loaderPath)
}

package memory

import "github.com/Lnrchaos/tweakngeek-firmware/abi"

const (
	GuardWord  = 0xDEADC0DE
	GuardWords = 16

	StackRegionSize = 8 * 1024
)

// SetGuard writes the guard pattern into the lowest words of a stack
// region. The stack grows down toward it.
func (m *Manager) SetGuard(stackBase uint32) abi.Status {
	if !m.phys.Contains(stackBase, GuardWords*4) {
		return abi.StatusInvalidParam
	}

	for i := uint32(0); i < GuardWords; i++ {
		m.wr(stackBase+i*4, GuardWord)
	}

	m.guardBase = stackBase

	m.l.Debug("stack-guard", "base", stackBase, "words", GuardWords)

	return abi.StatusOK
}

// CheckOverflow reports whether a stack has run into its guard: either
// the pointer sits at or below the guard words, or the pattern itself
// has been overwritten. Both checks run; a smashed guard with a healthy
// pointer still counts.
func (m *Manager) CheckOverflow(sp, stackBase uint32) bool {
	guardEnd := stackBase + GuardWords*4

	if sp < guardEnd {
		return true
	}

	for i := uint32(0); i < GuardWords; i++ {
		if m.rd(stackBase+i*4) != GuardWord {
			return true
		}
	}

	return false
}

package script

import (
	"bytes"
	"fmt"

	"github.com/fbanet/ledgercore/pkg/crypto"
	"github.com/fbanet/ledgercore/pkg/types"
)

// Opcode set for the Script lock kind. Deliberately minimal: this is not
// a general scripting language, only enough to express pay-to-pubkey and
// pay-to-pubkey-hash style programs inline (spec.md §6, "a minimal
// stack-based opcode set").
const (
	// opPushMin through opPushMax: a single opcode byte in [0x01, 0x4b]
	// means "push the next N bytes of the program as a data item",
	// mirroring the teacher's verifyP2PKH literal-comparison style.
	opPushMin = 0x01
	opPushMax = 0x4b

	opDup      = 0x76 // duplicate the top stack item
	opHash256  = 0xa8 // replace top item with crypto.Hash512(item)
	opEqual    = 0x87 // pop two items, push 1 if equal else 0
	opVerify   = 0x69 // pop top item, abort unless it is truthy
	opCheckSig = 0xac // pop pubkey then signature, push 1 if valid else 0
)

// vm executes a Script-kind opcode program against a starting stack.
type vm struct {
	stack         [][]byte
	maxTotalStack int
	maxItemSize   int
	pushed        int
}

func newVM(maxTotalStack, maxItemSize int, initial ...[]byte) *vm {
	m := &vm{maxTotalStack: maxTotalStack, maxItemSize: maxItemSize}
	for _, item := range initial {
		m.push(item)
	}
	return m
}

func (m *vm) push(item []byte) error {
	if len(item) > m.maxItemSize {
		return fmt.Errorf("%w: item size %d exceeds %d", ErrStackBudget, len(item), m.maxItemSize)
	}
	m.pushed++
	if m.pushed > m.maxTotalStack {
		return fmt.Errorf("%w: exceeded %d total pushes", ErrStackBudget, m.maxTotalStack)
	}
	m.stack = append(m.stack, item)
	return nil
}

func (m *vm) pop() ([]byte, error) {
	if len(m.stack) == 0 {
		return nil, fmt.Errorf("%w: pop from empty stack", ErrScriptFailed)
	}
	top := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return top, nil
}

func (m *vm) top() ([]byte, error) {
	if len(m.stack) == 0 {
		return nil, fmt.Errorf("%w: peek on empty stack", ErrScriptFailed)
	}
	return m.stack[len(m.stack)-1], nil
}

func truthy(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return true
		}
	}
	return false
}

// run executes program against the VM's current stack, using
// txSigningBytes for any OP_CHECKSIG encountered. It returns nil if the
// program finishes with a truthy value on top of the stack.
func (m *vm) run(program []byte, txSigningBytes []byte) error {
	i := 0
	for i < len(program) {
		op := program[i]
		i++

		switch {
		case op >= opPushMin && op <= opPushMax:
			n := int(op)
			if i+n > len(program) {
				return fmt.Errorf("%w: truncated push of %d bytes", ErrScriptFailed, n)
			}
			if err := m.push(program[i : i+n]); err != nil {
				return err
			}
			i += n

		case op == opDup:
			t, err := m.top()
			if err != nil {
				return err
			}
			if err := m.push(append([]byte{}, t...)); err != nil {
				return err
			}

		case op == opHash256:
			t, err := m.pop()
			if err != nil {
				return err
			}
			h := crypto.Hash512(t)
			if err := m.push(h[:]); err != nil {
				return err
			}

		case op == opEqual:
			a, err := m.pop()
			if err != nil {
				return err
			}
			b, err := m.pop()
			if err != nil {
				return err
			}
			if bytes.Equal(a, b) {
				if err := m.push([]byte{1}); err != nil {
					return err
				}
			} else {
				if err := m.push([]byte{0}); err != nil {
					return err
				}
			}

		case op == opVerify:
			t, err := m.pop()
			if err != nil {
				return err
			}
			if !truthy(t) {
				return fmt.Errorf("%w: OP_VERIFY failed", ErrScriptFailed)
			}

		case op == opCheckSig:
			pubKey, err := m.pop()
			if err != nil {
				return err
			}
			sig, err := m.pop()
			if err != nil {
				return err
			}
			if crypto.VerifySignature(txSigningBytes, sig, pubKey) {
				if err := m.push([]byte{1}); err != nil {
					return err
				}
			} else {
				if err := m.push([]byte{0}); err != nil {
					return err
				}
			}

		default:
			return fmt.Errorf("%w: unknown opcode 0x%02x", ErrScriptFailed, op)
		}
	}

	result, err := m.top()
	if err != nil {
		return err
	}
	if !truthy(result) {
		return fmt.Errorf("%w: program left a falsy result", ErrScriptFailed)
	}
	return nil
}

// verifyScript runs the Script lock kind: the unlock witness's Script
// field seeds the stack (signature and pubkey pushes), then lock.Data —
// the locking opcode program — is executed against it.
func (e *BuiltinEngine) verifyScript(lock types.Lock, unlock types.Unlock, txSigningBytes []byte) error {
	maxStack, maxItem := e.budget()
	m := newVM(maxStack, maxItem)
	if err := m.run(unlock.Script, txSigningBytes); err != nil {
		return err
	}
	return m.run(lock.Data, txSigningBytes)
}

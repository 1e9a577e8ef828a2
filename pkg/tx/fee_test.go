package tx

import "testing"

func TestEstimateTxFee(t *testing.T) {
	tests := []struct {
		name       string
		numInputs  int
		numOutputs int
		feeRate    uint64
		want       uint64
	}{
		{"zero rate", 1, 2, 0, 0},
		{"simple 1-in 2-out", 1, 2, 10, 1550},
		{"2-in 2-out", 2, 2, 10, 1910},
		{"consolidate 10-in 1-out", 10, 1, 10, 4300},
		{"rate 1", 1, 1, 1, 106},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateTxFee(tt.numInputs, tt.numOutputs, tt.feeRate)
			if got != tt.want {
				t.Errorf("EstimateTxFee(%d, %d, %d) = %d, want %d",
					tt.numInputs, tt.numOutputs, tt.feeRate, got, tt.want)
			}
		})
	}
}

func TestRequiredFee(t *testing.T) {
	txn := &Transaction{Version: 1, Tag: TagPayment}
	got := RequiredFee(txn, 5)
	want := uint64(len(txn.SigningBytes())) * 5
	if got != want {
		t.Errorf("RequiredFee() = %d, want %d", got, want)
	}
}

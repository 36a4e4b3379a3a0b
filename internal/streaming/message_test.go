package streaming

import "testing"

func TestEncodeDecode_TxMessage(t *testing.T) {
	payload, err := Encode(Message{
		Type:              MessageTypeWrap,
		ChainID:           1868,
		Round:             3,
		TxHash:            "0xabc",
		BlockNumber:       120,
		GasUsed:           45000,
		EffectiveGasPrice: "1000000000",
		FeeWei:            "45000000000000",
		Status:            1,
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	decoded, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Type != MessageTypeWrap || decoded.Round != 3 || decoded.TxHash != "0xabc" {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}

func TestEncode_Validation(t *testing.T) {
	cases := map[string]Message{
		"missing type":     {ChainID: 1},
		"missing chain id": {Type: MessageTypeWrap, TxHash: "0x1"},
		"missing tx hash":  {Type: MessageTypeUnwrap, ChainID: 1},
		"unknown type":     {Type: "reorg", ChainID: 1},
	}
	for name, msg := range cases {
		if _, err := Encode(msg); err == nil {
			t.Errorf("%s: expected encode error", name)
		}
	}
}

func TestEncode_SummaryNeedsNoTxHash(t *testing.T) {
	if _, err := Encode(Message{Type: MessageTypeSummary, ChainID: 1868, Rounds: 2}); err != nil {
		t.Errorf("summary encode failed: %v", err)
	}
}

func TestDecode_RejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("{not json")); err == nil {
		t.Error("expected decode error")
	}
}

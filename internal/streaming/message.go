package streaming

import (
	"encoding/json"
	"errors"
)

type MessageType string

const (
	MessageTypeWrap    MessageType = "wrap"
	MessageTypeUnwrap  MessageType = "unwrap"
	MessageTypeSummary MessageType = "summary"
)

type Message struct {
	Type    MessageType `json:"type"`
	ChainID uint64      `json:"chain_id"`
	TraceID string      `json:"trace_id,omitempty"`

	Round             int    `json:"round,omitempty"`
	TxHash            string `json:"tx_hash,omitempty"`
	BlockNumber       uint64 `json:"block_number,omitempty"`
	GasUsed           uint64 `json:"gas_used,omitempty"`
	EffectiveGasPrice string `json:"effective_gas_price,omitempty"`
	FeeWei            string `json:"fee_wei,omitempty"`
	Status            uint64 `json:"status"`

	Rounds         int    `json:"rounds,omitempty"`
	Wraps          int    `json:"wraps,omitempty"`
	Unwraps        int    `json:"unwraps,omitempty"`
	SkippedUnwraps int    `json:"skipped_unwraps,omitempty"`
	TotalFeeWei    string `json:"total_fee_wei,omitempty"`
}

func Encode(msg Message) ([]byte, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if err := validate(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func validate(msg Message) error {
	if msg.Type == "" {
		return errors.New("message type is required")
	}
	if msg.ChainID == 0 {
		return errors.New("chain_id is required")
	}
	switch msg.Type {
	case MessageTypeWrap, MessageTypeUnwrap:
		if msg.TxHash == "" {
			return errors.New("tx_hash is required")
		}
	case MessageTypeSummary:
	default:
		return errors.New("unknown message type")
	}
	return nil
}

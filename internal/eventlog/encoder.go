package eventlog

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolFactory/internal/model"
)

// FactoryEncoder packs emitted registry events into journal records using the
// canonical factory ABI wire layout.
type FactoryEncoder struct {
	factoryABI abi.ABI
}

// NewFactoryEncoder builds a factory event encoder.
func NewFactoryEncoder() (*FactoryEncoder, error) {
	factoryABI, err := FactoryABI()
	if err != nil {
		return nil, err
	}
	return &FactoryEncoder{factoryABI: factoryABI}, nil
}

// Encode converts an emitted event into its journal record.
func (e *FactoryEncoder) Encode(event model.Event, emittedAt time.Time) (model.EventRecord, error) {
	switch data := event.Data.(type) {
	case model.OwnerChangedEventData:
		return e.encodeOwnerChanged(event, data, emittedAt)
	case model.FeeAmountEnabledEventData:
		return e.encodeFeeAmountEnabled(event, data, emittedAt)
	case model.PoolCreatedEventData:
		return e.encodePoolCreated(event, data, emittedAt)
	default:
		return model.EventRecord{}, fmt.Errorf("unsupported event payload: %T", event.Data)
	}
}

func (e *FactoryEncoder) encodeOwnerChanged(event model.Event, data model.OwnerChangedEventData, emittedAt time.Time) (model.EventRecord, error) {
	abiEvent, err := e.abiEvent(event.Name, "OwnerChanged")
	if err != nil {
		return model.EventRecord{}, err
	}

	oldOwner, err := parseAddress(data.OldOwner)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("old owner: %w", err)
	}
	newOwner, err := parseAddress(data.NewOwner)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("new owner: %w", err)
	}

	topics := []common.Hash{
		topicFromAddress(oldOwner),
		topicFromAddress(newOwner),
	}
	return buildEventRecord(event.Seq, abiEvent, topics, nil, emittedAt), nil
}

func (e *FactoryEncoder) encodeFeeAmountEnabled(event model.Event, data model.FeeAmountEnabledEventData, emittedAt time.Time) (model.EventRecord, error) {
	abiEvent, err := e.abiEvent(event.Name, "FeeAmountEnabled")
	if err != nil {
		return model.EventRecord{}, err
	}

	topics := []common.Hash{
		topicFromUint24(data.Fee),
		topicFromInt24(data.TickSpacing),
	}
	return buildEventRecord(event.Seq, abiEvent, topics, nil, emittedAt), nil
}

func (e *FactoryEncoder) encodePoolCreated(event model.Event, data model.PoolCreatedEventData, emittedAt time.Time) (model.EventRecord, error) {
	abiEvent, err := e.abiEvent(event.Name, "PoolCreated")
	if err != nil {
		return model.EventRecord{}, err
	}

	token0, err := parseAddress(data.Token0)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("token0: %w", err)
	}
	token1, err := parseAddress(data.Token1)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("token1: %w", err)
	}
	pool, err := parseAddress(data.Pool)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("pool: %w", err)
	}

	packed, err := abiEvent.Inputs.NonIndexed().Pack(
		big.NewInt(int64(data.TickSpacing)),
		pool,
	)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("pack pool created: %w", err)
	}

	topics := []common.Hash{
		topicFromAddress(token0),
		topicFromAddress(token1),
		topicFromUint24(data.Fee),
	}
	return buildEventRecord(event.Seq, abiEvent, topics, packed, emittedAt), nil
}

func (e *FactoryEncoder) abiEvent(eventName, want string) (abi.Event, error) {
	if eventName != want {
		return abi.Event{}, fmt.Errorf("event name %q does not match payload %s", eventName, want)
	}
	abiEvent, ok := e.factoryABI.Events[want]
	if !ok {
		return abi.Event{}, fmt.Errorf("event %s missing from factory abi", want)
	}
	return abiEvent, nil
}

func buildEventRecord(seq uint64, abiEvent abi.Event, indexed []common.Hash, data []byte, emittedAt time.Time) model.EventRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, abiEvent.ID.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.EventRecord{
		Seq:       seq,
		Name:      abiEvent.Name,
		Topics:    topics,
		Data:      hexutil.Encode(data),
		EmittedAt: emittedAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseAddress(input string) (common.Address, error) {
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %s", input)
	}
	return common.HexToAddress(input), nil
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromUint24(value uint32) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(uint64(value)))
}

func topicFromInt24(value int32) common.Hash {
	bigVal := big.NewInt(int64(value))
	if value < 0 {
		bigVal = new(big.Int).Add(bigVal, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(bigVal)
}

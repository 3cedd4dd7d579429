package eventlog

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"poolFactory/internal/model"
)

// FactoryDecoder decodes journal records back into typed factory events.
type FactoryDecoder struct {
	factoryABI  abi.ABI
	topicToName map[string]string
}

// NewFactoryDecoder builds a factory event decoder.
func NewFactoryDecoder() (*FactoryDecoder, error) {
	factoryABI, err := FactoryABI()
	if err != nil {
		return nil, err
	}

	topicToName := map[string]string{
		strings.ToLower(factoryABI.Events["OwnerChanged"].ID.Hex()):     "OwnerChanged",
		strings.ToLower(factoryABI.Events["FeeAmountEnabled"].ID.Hex()): "FeeAmountEnabled",
		strings.ToLower(factoryABI.Events["PoolCreated"].ID.Hex()):      "PoolCreated",
	}

	return &FactoryDecoder{
		factoryABI:  factoryABI,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *FactoryDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts an EventRecord into a DecodedEvent.
func (d *FactoryDecoder) Decode(record model.EventRecord) (*model.DecodedEvent, error) {
	if len(record.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(record.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", record.Topics[0])
	}
	if record.Name != "" && record.Name != name {
		return nil, fmt.Errorf("record name %q does not match topic0 event %s", record.Name, name)
	}

	switch name {
	case "OwnerChanged":
		decoded, err := d.decodeOwnerChanged(record)
		if err != nil {
			return nil, err
		}
		return buildDecodedEvent(record, name, decoded), nil
	case "FeeAmountEnabled":
		decoded, err := d.decodeFeeAmountEnabled(record)
		if err != nil {
			return nil, err
		}
		return buildDecodedEvent(record, name, decoded), nil
	case "PoolCreated":
		decoded, err := d.decodePoolCreated(record)
		if err != nil {
			return nil, err
		}
		return buildDecodedEvent(record, name, decoded), nil
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
}

func buildDecodedEvent(record model.EventRecord, name string, decoded interface{}) *model.DecodedEvent {
	raw := &model.RawEventRef{Topic0: record.Topics[0], Data: record.Data}
	return &model.DecodedEvent{
		Seq:       record.Seq,
		Name:      name,
		EmittedAt: record.EmittedAt,
		Decoded:   decoded,
		Raw:       raw,
	}
}

func (d *FactoryDecoder) decodeOwnerChanged(record model.EventRecord) (model.OwnerChangedEventData, error) {
	event := d.factoryABI.Events["OwnerChanged"]
	indexedTopics, err := parseIndexedTopics(event, record.Topics)
	if err != nil {
		return model.OwnerChangedEventData{}, err
	}

	var indexed struct {
		OldOwner common.Address
		NewOwner common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.OwnerChangedEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	return model.OwnerChangedEventData{
		OldOwner: indexed.OldOwner.Hex(),
		NewOwner: indexed.NewOwner.Hex(),
	}, nil
}

func (d *FactoryDecoder) decodeFeeAmountEnabled(record model.EventRecord) (model.FeeAmountEnabledEventData, error) {
	event := d.factoryABI.Events["FeeAmountEnabled"]
	indexedTopics, err := parseIndexedTopics(event, record.Topics)
	if err != nil {
		return model.FeeAmountEnabledEventData{}, err
	}

	var indexed struct {
		Fee         *big.Int
		TickSpacing *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.FeeAmountEnabledEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	fee, err := uint24FromBig(indexed.Fee)
	if err != nil {
		return model.FeeAmountEnabledEventData{}, fmt.Errorf("fee: %w", err)
	}
	tickSpacing, err := int24FromBig(indexed.TickSpacing)
	if err != nil {
		return model.FeeAmountEnabledEventData{}, fmt.Errorf("tick spacing: %w", err)
	}

	return model.FeeAmountEnabledEventData{
		Fee:         fee,
		TickSpacing: tickSpacing,
	}, nil
}

func (d *FactoryDecoder) decodePoolCreated(record model.EventRecord) (model.PoolCreatedEventData, error) {
	event := d.factoryABI.Events["PoolCreated"]
	indexedTopics, err := parseIndexedTopics(event, record.Topics)
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}

	var indexed struct {
		Token0 common.Address
		Token1 common.Address
		Fee    *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return model.PoolCreatedEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, record.Data)
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}
	if len(values) != 2 {
		return model.PoolCreatedEventData{}, fmt.Errorf("unexpected pool created values: %d", len(values))
	}

	tickSpacingInt, err := asBigInt(values[0])
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}
	tickSpacing, err := int24FromBig(tickSpacingInt)
	if err != nil {
		return model.PoolCreatedEventData{}, fmt.Errorf("tick spacing: %w", err)
	}
	pool, err := asAddress(values[1])
	if err != nil {
		return model.PoolCreatedEventData{}, err
	}

	fee, err := uint24FromBig(indexed.Fee)
	if err != nil {
		return model.PoolCreatedEventData{}, fmt.Errorf("fee: %w", err)
	}

	return model.PoolCreatedEventData{
		Token0:      indexed.Token0.Hex(),
		Token1:      indexed.Token1.Hex(),
		Fee:         fee,
		TickSpacing: tickSpacing,
		Pool:        pool.Hex(),
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}

func uint24FromBig(value *big.Int) (uint32, error) {
	max := big.NewInt((1 << 24) - 1)
	if value.Sign() < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("uint24 overflow: %s", value.String())
	}
	return uint32(value.Uint64()), nil
}

package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/govm-net/wasmlib/codec"
	"github.com/govm-net/wasmlib/core"
	"github.com/govm-net/wasmlib/dict"
)

// parseParams builds a params dict from key[:type]=value arguments.
// Without a type the value is stored as a string.
func parseParams(args []string) (*dict.Dict, error) {
	params := dict.New()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q, want key[:type]=value", arg)
		}
		key, typeName, _ := strings.Cut(key, ":")
		if len(key) > dict.MaxKeyLength {
			return nil, fmt.Errorf("param key too long: %d bytes", len(key))
		}
		buf, err := encodeParam(typeName, value)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", key, err)
		}
		params.SetString(key, buf)
	}
	return params, nil
}

func encodeParam(typeName, value string) ([]byte, error) {
	switch typeName {
	case "", "string":
		return codec.StringToBytes(value), nil
	case "bytes":
		return hex.DecodeString(strings.TrimPrefix(value, "0x"))
	case "bool":
		v, err := strconv.ParseBool(value)
		return codec.BoolToBytes(v), err
	case "int8", "int16", "int32", "int64":
		bits, _ := strconv.Atoi(strings.TrimPrefix(typeName, "int"))
		v, err := strconv.ParseInt(value, 0, bits)
		if err != nil {
			return nil, err
		}
		return signedBytes(bits, v), nil
	case "uint8", "uint16", "uint32", "uint64":
		bits, _ := strconv.Atoi(strings.TrimPrefix(typeName, "uint"))
		v, err := strconv.ParseUint(value, 0, bits)
		if err != nil {
			return nil, err
		}
		return unsignedBytes(bits, v), nil
	case "hname":
		return core.NewHname(value).Bytes(), nil
	case "address":
		v, err := core.AddressFromString(value)
		return v.Bytes(), err
	case "agentid":
		v, err := core.AgentIDFromString(value)
		return v.Bytes(), err
	case "chainid":
		v, err := core.ChainIDFromString(value)
		return v.Bytes(), err
	case "hash":
		v, err := core.HashFromString(value)
		return v.Bytes(), err
	}
	return nil, fmt.Errorf("unknown type %q", typeName)
}

func signedBytes(bits int, v int64) []byte {
	switch bits {
	case 8:
		return codec.Int8ToBytes(int8(v))
	case 16:
		return codec.Int16ToBytes(int16(v))
	case 32:
		return codec.Int32ToBytes(int32(v))
	}
	return codec.Int64ToBytes(v)
}

func unsignedBytes(bits int, v uint64) []byte {
	switch bits {
	case 8:
		return codec.Uint8ToBytes(uint8(v))
	case 16:
		return codec.Uint16ToBytes(uint16(v))
	case 32:
		return codec.Uint32ToBytes(uint32(v))
	}
	return codec.Uint64ToBytes(v)
}

// formatValue renders a result value as text when it is printable and as hex otherwise
func formatValue(value []byte) string {
	if len(value) == 0 || !utf8.Valid(value) {
		return "0x" + hex.EncodeToString(value)
	}
	for _, r := range string(value) {
		if !strconv.IsPrint(r) {
			return "0x" + hex.EncodeToString(value)
		}
	}
	return strconv.Quote(string(value))
}

package client

import (
	"github.com/satishbabariya/relquery/internal/core/query/mapper"
)

// Decode copies a record into the struct dest points to. Fields match by
// json tag, then db tag, then name; included relations fill nested
// struct, pointer and slice fields.
func Decode(rec Record, dest any) error {
	return mapper.MapToStruct(rec, dest)
}

// DecodeAll copies records into the slice dest points to.
func DecodeAll(records []Record, dest any) error {
	return mapper.MapToStructSlice(records, dest)
}

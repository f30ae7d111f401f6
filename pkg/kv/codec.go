package kv

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal converts a tagged struct into an Item through its JSON form.
func Marshal(v any) (Item, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return DecodeJSON(data)
}

// Unmarshal fills v from the item.
func Unmarshal(item Item, v any) error {
	data, err := EncodeJSON(item)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func EncodeJSON(item Item) ([]byte, error) {
	return json.Marshal(item)
}

func DecodeJSON(data []byte) (Item, error) {
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return item, nil
}

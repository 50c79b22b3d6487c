package main

import (
	"fmt"
	"strconv"
)

// boolArg is a boolean flag that takes its value as a separate argument,
// so "--headless false" works as well as "--headless=false".
type boolArg bool

func (b *boolArg) String() string { return strconv.FormatBool(bool(*b)) }

func (b *boolArg) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("expected true or false, got %q", s)
	}
	*b = boolArg(v)
	return nil
}

func (b *boolArg) Type() string { return "bool" }

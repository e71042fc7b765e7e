package test

import (
	"math/rand"
	"strings"
)

const validTokens = "func;fibonacci;(;);{;};x;:;Double;->;,;return;if;else;+;-;*;/;<;123;3.25;0;//comment\n;\n"

func GetRandomTokens(size int) string {
	return GetRandomTokensWithSep(size, " ")
}

func GetRandomTokensWithSep(size int, sep string) string {
	valid := strings.Split(validTokens, ";")

	var toks []string
	for len(toks) < size {
		toks = append(toks, valid[rand.Intn(len(valid))])
	}

	return strings.Join(toks, sep)
}

package test

import (
	"math/rand"
	"strings"
)

var validTokens = []string{
	"def", "extern", "if", "then", "else", "for", "in", "var", "binary", "unary",
	"(", ")", ",", ";",
	"fib", "x", "n", "step_1", "_tmp",
	"0", "42", "123", "3.14159", "0.5", "100000.25",
	"+", "-", "*", "/", "<", "|", "&", "!", "=", ":",
	"# a line comment\n",
	"\n",
}

func GetRandomTokens(size int) string {
	return GetRandomTokensWithSep(size, " ")
}

func GetRandomTokensWithSep(size int, sep string) string {
	var toks []string
	for len(toks) < size {
		toks = append(toks, validTokens[rand.Intn(len(validTokens))])
	}

	return strings.Join(toks, sep)
}

package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Start and end codes are drawn uniformly from [minCode, maxCode].
const (
	minCode = 1000
	maxCode = 9999
)

// CodeGenerator produces booking tokens and station codes.
type CodeGenerator interface {
	Token(now time.Time) string
	Code() int
}

// RandomCodes draws from crypto/rand.
type RandomCodes struct{}

// Token returns "TK" followed by the unix millisecond timestamp and a 0-999 suffix.
func (RandomCodes) Token(now time.Time) string {
	return fmt.Sprintf("TK%d%d", now.UnixMilli(), randomInt(1000))
}

// Code returns a four digit code.
func (RandomCodes) Code() int {
	return minCode + randomInt(maxCode-minCode+1)
}

func randomInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("codes: crypto/rand unavailable: %v", err))
	}
	return int(v.Int64())
}

// codePair draws a start code and a different end code.
func codePair(gen CodeGenerator) (int, int) {
	start := gen.Code()
	end := gen.Code()
	for end == start {
		end = gen.Code()
	}
	return start, end
}

package util

import (
	"fmt"
)

func ExampleSetBit_MSB() {
	out := SetBit(0, 7, true)
	fmt.Printf("%08b\n", out)
	// Output: 10000000
}

func ExampleSetBit_LSB() {
	out := SetBit(255, 0, false)
	fmt.Printf("%08b\n", out)
	// Output: 11111110
}

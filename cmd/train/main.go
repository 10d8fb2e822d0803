package main

import (
	"os"
)

func main() {
	if err := rootCmd(openApp).Execute(); err != nil {
		os.Exit(1)
	}
}

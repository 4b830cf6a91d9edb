package cmd

import (
	"fmt"
)

const banner = `
  _____ _____ _____ _____  _____
 |  __ \_   _/ ____|_   _|/ ____|
 | |__) || || |      | | | (___
 |  ___/ | || |      | |  \___ \
 | |    _| || |____ _| |_ ____) |
 |_|   |_____\_____|_____|_____/

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Website Security Analysis Tracker - Version %s\x1b[0m\n\n", Version)
}

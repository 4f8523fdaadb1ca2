// Command pinhash produces the argon2id hash of an operator PIN for the
// admin.pin_hash config field.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/netrixlabs/keygate/internal/auth"
)

func main() {
	if len(os.Args) != 2 {
		log.Fatalf("usage: %s <pin>", os.Args[0])
	}

	hash, err := auth.HashPIN(os.Args[1])
	if err != nil {
		log.Fatalf("hash failed: %v", err)
	}
	fmt.Println(hash)
}

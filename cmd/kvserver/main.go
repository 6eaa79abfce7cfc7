package main

import (
	"log"
	"os"

	"kvstore"
)

// The server takes no arguments, environment variables or config file
// (spec §6): it always binds DefaultConfig().ListenAddr.
func main() {
	logger := log.New(os.Stderr, "kvstore: ", log.LstdFlags)

	srv := kvstore.NewServer(kvstore.DefaultConfig(), logger)
	if err := srv.Run(); err != nil {
		logger.Fatalln("fatal:", err.Error())
	}
}

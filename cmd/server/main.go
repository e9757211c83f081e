package main

import (
	"os"

	"localchat/backend/internal/app"
)

// @title           Local Chat Companion API
// @version         1.0
// @description     Auth, chat storage, and a streaming proxy to a local llama.cpp server.
// @BasePath        /
func main() {
	os.Exit(app.Run())
}

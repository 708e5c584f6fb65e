package main

import (
	"github.com/dwarvesf/onchain-tracker/internal/server"
)

// @title			Onchain Tracker API
// @version		1.0
// @description	Read API over reconciled EVM and non-EVM wallet activity.
// @BasePath		/
func main() {
	server.Init()
}

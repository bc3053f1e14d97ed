package main

import (
	"github.com/SakuraBurst/rewards/internal/rewards"
	"github.com/SakuraBurst/rewards/internal/rewards/config"
)

func main() {
	// CONFIG_PATH=./config/config.yaml to read a file instead of env
	cfg := config.MustLoad()
	a := rewards.NewApp(cfg)
	a.Run()
}

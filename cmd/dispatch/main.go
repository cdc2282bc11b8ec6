package main

import (
	"github.com/corray333/backend-labs/marketplace/internal/app/dispatch"
	"github.com/corray333/backend-labs/marketplace/internal/config"
)

func main() {
	config.MustInit("dispatch")
	dispatch.MustNewApp().Run()
}

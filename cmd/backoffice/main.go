package main

import (
	"github.com/corray333/backend-labs/marketplace/internal/app/backoffice"
	"github.com/corray333/backend-labs/marketplace/internal/config"
)

func main() {
	config.MustInit("backoffice")
	backoffice.MustNewApp().Run()
}

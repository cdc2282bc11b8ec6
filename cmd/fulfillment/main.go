package main

import (
	"github.com/corray333/backend-labs/marketplace/internal/app/fulfillment"
	"github.com/corray333/backend-labs/marketplace/internal/config"
)

func main() {
	config.MustInit("fulfillment")
	fulfillment.MustNewApp().Run()
}

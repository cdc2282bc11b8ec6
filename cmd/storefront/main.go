package main

import (
	"github.com/corray333/backend-labs/marketplace/internal/app/storefront"
	"github.com/corray333/backend-labs/marketplace/internal/config"
)

func main() {
	config.MustInit("storefront")
	storefront.MustNewApp().Run()
}

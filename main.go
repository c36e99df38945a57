package main

import (
	"log"
	"time"

	_ "github.com/anoixa/grammable/docs"

	"github.com/anoixa/grammable/config"

	"github.com/anoixa/grammable/cmd"
)

// @title           grammable API
// @version         1.0
// @description     Share grams: a message and a picture.
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func init() {
	var cstZone = time.FixedZone("CST", 8*3600) // 东八
	time.Local = cstZone
}

func main() {
	log.Printf("grammable %s (%s)", config.Version, config.CommitHash)
	cmd.Execute()
}

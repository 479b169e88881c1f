package main

import (
	"flag"
	"log"

	"github.com/macropower/dtrl/api/v1beta1/projectconfigs"
	"github.com/macropower/dtrl/internal/schemagen"
)

var outFile = flag.String("o", "schema.json", "Output file for the generated schema")

func main() {
	flag.Parse()

	gen := schemagen.NewGenerator(projectconfigs.New(),
		schemagen.ModulePath+"/api/v1beta1",
		schemagen.ModulePath+"/api/v1beta1/projectconfigs",
		schemagen.ModulePath+"/pkg/command",
		schemagen.ModulePath+"/pkg/profile",
		schemagen.ModulePath+"/pkg/rule",
	)

	err := gen.Write(*outFile)
	if err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/binspec/binspec"
)

func main() {
	var (
		scriptFile = flag.String("script", "", "binspec script file")
		inputFile  = flag.String("input", "", "binary input file")
	)
	flag.Parse()
	if len(*scriptFile) == 0 || len(*inputFile) == 0 {
		fmt.Println("Error: ", "-script and -input are both required ...")
		os.Exit(0)
	}

	scriptBytes, err := os.ReadFile(*scriptFile)
	if err != nil {
		fmt.Println("Error: ", err)
		os.Exit(1)
	}
	parser, err := binspec.Prepare(string(scriptBytes), binspec.MSBFirst)
	if err != nil {
		fmt.Println("Error: ", err)
		os.Exit(1)
	}

	input, err := os.Open(*inputFile)
	if err != nil {
		fmt.Println("Error: ", err)
		os.Exit(1)
	}
	defer input.Close()

	root, err := parser.Parse(input, nil, nil, nil, 0)
	if err != nil {
		fmt.Println("Error: ", err)
		os.Exit(1)
	}
	fmt.Printf("%+v\n", root)
}

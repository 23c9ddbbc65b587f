package main

import "github.com/joseph-ayodele/invoice-extractor/cmd/invoicectl/cmd"

func main() {
	cmd.Execute()
}

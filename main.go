package main

import "github.com/velorum-store/ms-go-checkout/cmd"

func main() {
	cmd.Execute()
}

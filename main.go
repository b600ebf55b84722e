package main

import "github.com/ValentinKolb/theaterctl/cmd"

func main() {
	cmd.Execute()
}

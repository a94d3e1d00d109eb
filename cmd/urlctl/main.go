package main

import "go.urlrecord.dev/core/cmd/urlctl/urlctlcmd"

func main() { urlctlcmd.Execute() }

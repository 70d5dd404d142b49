package main

import (
	"github.com/natelasko528/milwaukee-vehicle-finder/cmd/vehiclefinder/commands"
	"github.com/natelasko528/milwaukee-vehicle-finder/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}

// Diagnostic tool for EtherCAT network configurations: inspect an ENI
// file and dry-run bus cycles against the in-memory virtual driver.
package main

import (
	"fmt"
	"time"

	"github.com/alecthomas/kong"
	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/driver/virtual"
	"github.com/samsamfire/goethercat/pkg/eni"
	"github.com/samsamfire/goethercat/pkg/master"
	log "github.com/sirupsen/logrus"
)

type InfoCmd struct {
	Eni       string `arg:"" help:"Path to the ENI file."`
	Variables bool   `help:"Also list the mapped process-image variables."`
}

func (c *InfoCmd) Run() error {
	config, err := eni.FromFile(c.Eni, nil)
	if err != nil {
		return err
	}
	fmt.Printf("Master  : %s\n", config.GetMaster().GetName())
	fmt.Printf("Cycle   : %s\n", config.GetCyclic().CycleTime())
	image := config.GetProcessImage()
	fmt.Printf("PDI     : %d B in / %d B out\n",
		image.GetByteSize(ethercat.DirectionInput),
		image.GetByteSize(ethercat.DirectionOutput),
	)
	for _, slave := range config.GetSlaves() {
		pdos := slave.GetPdos()
		assigned := slave.GetAssignedPdos()
		fmt.Printf("Slave %q addr=%d topo=%d pdos=%d/%d assigned=%d/%d\n",
			slave.GetName(), slave.GetFixedAddr(), slave.GetTopologicalAddr(),
			len(pdos.Inputs), len(pdos.Outputs),
			len(assigned.Inputs), len(assigned.Outputs),
		)
		for _, pdo := range append(append([]eni.Pdo{}, assigned.Inputs...), assigned.Outputs...) {
			sm, _ := pdo.GetSyncManager()
			fmt.Printf("  pdo x%04x %q dir=%v sm=%d entries=%d\n",
				pdo.GetIndex(), pdo.GetName(), pdo.GetDirection(), sm, len(pdo.GetEntries()))
			for _, entry := range pdo.GetEntries() {
				fmt.Printf("    x%04x:%02x %-24q %-12s %d bits\n",
					entry.GetIndex(), entry.GetSubIndex(), entry.GetName(),
					entry.GetDataType().Name(), entry.GetBitLen())
			}
		}
	}
	if c.Variables {
		for _, direction := range []ethercat.Direction{ethercat.DirectionInput, ethercat.DirectionOutput} {
			for _, variable := range image.GetVariables(direction) {
				fmt.Printf("var %-7v %-48s %-12s off=%-6d size=%d\n",
					direction, variable.GetFullName(), variable.GetDataType().Name(),
					variable.GetBitOffset(), variable.GetBitSize())
			}
		}
	}
	return nil
}

type CycleCmd struct {
	Eni    string        `arg:"" help:"Path to the ENI file."`
	Cycles int           `default:"10" help:"Number of read/write cycles to run."`
	Period time.Duration `default:"10ms" help:"Cycle period."`
}

func (c *CycleCmd) Run() error {
	bus := virtual.NewDriver()
	m, err := master.NewFromFile(bus, c.Eni, nil, nil)
	if err != nil {
		return err
	}
	log.Infof("running %d cycles of %v against the virtual driver", c.Cycles, c.Period)
	ticker := time.NewTicker(c.Period)
	defer ticker.Stop()
	for i := 0; i < c.Cycles; i++ {
		<-ticker.C
		if err := m.ReadBus(0); err != nil {
			return err
		}
		if err := m.WriteBus(0); err != nil {
			return err
		}
	}
	log.Info("done")
	return nil
}

var cli struct {
	Debug bool     `help:"Enable debug logging."`
	Info  InfoCmd  `cmd:"" help:"Dump the content of an ENI file."`
	Cycle CycleCmd `cmd:"" help:"Dry-run bus cycles against the virtual driver."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("ethercat"),
		kong.Description("EtherCAT network configuration diagnostics."),
	)
	if cli.Debug {
		log.SetLevel(log.DebugLevel)
	}
	ctx.FatalIfErrorf(ctx.Run())
}

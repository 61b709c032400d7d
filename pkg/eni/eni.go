// Package eni provides read-only, navigable access to an EtherCAT
// Network Information (ENI) file: the bus topology, per-slave PDO
// layouts and the Process Data Image mapping consumed by the master.
package eni

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	ethercat "github.com/samsamfire/goethercat"
	"github.com/samsamfire/goethercat/pkg/coe"
)

// Raw document schema. Unknown elements are ignored by encoding/xml,
// as required. The root element may be <EtherCATConfig> wrapping
// <Config>, or <Config> directly.

type xmlRoot struct {
	Config *xmlConfig `xml:"Config"`
	// Set when the document root is <Config> itself
	Master       *xmlMaster       `xml:"Master"`
	Slaves       []xmlSlave       `xml:"Slave"`
	Cyclic       *xmlCyclic       `xml:"Cyclic"`
	ProcessImage *xmlProcessImage `xml:"ProcessImage"`
}

type xmlConfig struct {
	Master       *xmlMaster       `xml:"Master"`
	Slaves       []xmlSlave       `xml:"Slave"`
	Cyclic       *xmlCyclic       `xml:"Cyclic"`
	ProcessImage *xmlProcessImage `xml:"ProcessImage"`
}

type xmlMaster struct {
	Name string `xml:"Name"`
}

type xmlSlave struct {
	Info        xmlSlaveInfo    `xml:"Info"`
	ProcessData *xmlProcessData `xml:"ProcessData"`
}

type xmlSlaveInfo struct {
	Name        string `xml:"Name"`
	PhysAddr    string `xml:"PhysAddr"`
	AutoIncAddr string `xml:"AutoIncAddr"`
}

type xmlProcessData struct {
	TxPdos []xmlPdo `xml:"TxPdo"`
	RxPdos []xmlPdo `xml:"RxPdo"`
}

type xmlPdo struct {
	// Sync-manager assignment appears either as an attribute or as a
	// <SmNo> child depending on the exporting tool
	SmAttr  *string       `xml:"Sm,attr"`
	SmNo    *string       `xml:"SmNo"`
	Fixed   string        `xml:"Fixed"`
	Index   string        `xml:"Index"`
	Name    string        `xml:"Name"`
	Exclude []string      `xml:"Exclude"`
	Entries []xmlPdoEntry `xml:"Entry"`

	// The fixed flag likewise appears as an attribute or a <Fixed> child
	FixedAttr string `xml:"Fixed,attr"`
}

type xmlPdoEntry struct {
	Index    string `xml:"Index"`
	SubIndex string `xml:"SubIndex"`
	BitLen   string `xml:"BitLen"`
	Name     string `xml:"Name"`
	DataType string `xml:"DataType"`
}

type xmlCyclic struct {
	// Bus cycle duration in microseconds
	CycleTime string `xml:"CycleTime"`
}

type xmlProcessImage struct {
	Inputs  *xmlProcessImageDir `xml:"Inputs"`
	Outputs *xmlProcessImageDir `xml:"Outputs"`
}

type xmlProcessImageDir struct {
	ByteSize  string        `xml:"ByteSize"`
	Variables []xmlVariable `xml:"Variable"`
}

type xmlVariable struct {
	Name     string `xml:"Name"`
	DataType string `xml:"DataType"`
	BitSize  string `xml:"BitSize"`
	BitOffs  string `xml:"BitOffs"`
}

// parseNumber accepts the numeric notations found in ENI files:
// decimal, 0x-prefixed hex and the ENI-specific #x prefix
func parseNumber(raw string) (int64, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "#x") || strings.HasPrefix(trimmed, "#X") {
		return strconv.ParseInt(trimmed[2:], 16, 64)
	}
	return strconv.ParseInt(trimmed, 0, 64)
}

func parseBool(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed == "1" || strings.EqualFold(trimmed, "true")
}

// Configuration is the root view over a parsed ENI document
type Configuration struct {
	master       Master
	slaves       []Slave
	cyclic       Cyclic
	processImage *ProcessImage
	logger       *slog.Logger
}

// FromFile parses an ENI file from disk
func FromFile(path string, logger *slog.Logger) (*Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ENI file %v : %w", path, err)
	}
	defer f.Close()
	return FromReader(f, logger)
}

// FromString parses an ENI document held in memory
func FromString(document string, logger *slog.Logger) (*Configuration, error) {
	return FromReader(strings.NewReader(document), logger)
}

// FromReader parses an ENI document from a stream
func FromReader(r io.Reader, logger *slog.Logger) (*Configuration, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var root xmlRoot
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&root); err != nil {
		return nil, ethercat.NewEniError("Config", "XML decoding failed: %v", err)
	}
	cfg := root.Config
	if cfg == nil {
		// Document rooted at <Config> directly
		cfg = &xmlConfig{
			Master:       root.Master,
			Slaves:       root.Slaves,
			Cyclic:       root.Cyclic,
			ProcessImage: root.ProcessImage,
		}
	}
	return newConfiguration(cfg, logger)
}

func newConfiguration(doc *xmlConfig, logger *slog.Logger) (*Configuration, error) {
	config := &Configuration{logger: logger}

	if doc.Master == nil || doc.Master.Name == "" {
		return nil, ethercat.NewEniError("Config.Master.Name", "missing mandatory element")
	}
	config.master = Master{name: doc.Master.Name}

	for i := range doc.Slaves {
		slave, err := newSlave(&doc.Slaves[i])
		if err != nil {
			return nil, err
		}
		config.slaves = append(config.slaves, slave)
	}

	if doc.Cyclic != nil {
		us, err := parseNumber(doc.Cyclic.CycleTime)
		if err != nil {
			return nil, ethercat.NewEniError("Config.Cyclic.CycleTime", "malformed duration %q", doc.Cyclic.CycleTime)
		}
		config.cyclic = Cyclic{cycleTime: time.Duration(us) * time.Microsecond}
	}

	slaveNames := make(map[string]bool, len(config.slaves))
	for _, slave := range config.slaves {
		slaveNames[slave.name] = true
	}
	image, err := newProcessImage(doc.ProcessImage, slaveNames)
	if err != nil {
		return nil, err
	}
	config.processImage = image

	logger.Debug("parsed ENI configuration",
		"master", config.master.name,
		"slaves", len(config.slaves),
		"cycle", config.cyclic.cycleTime,
	)
	return config, nil
}

// GetMaster returns the master description
func (c *Configuration) GetMaster() Master { return c.master }

// GetCyclic returns the cyclic exchange parameters
func (c *Configuration) GetCyclic() Cyclic { return c.cyclic }

// GetProcessImage returns the PDI layout view
func (c *Configuration) GetProcessImage() *ProcessImage { return c.processImage }

// ListSlaves returns the names of all configured slaves, in bus order
func (c *Configuration) ListSlaves() []string {
	names := make([]string, 0, len(c.slaves))
	for _, slave := range c.slaves {
		names = append(names, slave.name)
	}
	return names
}

// GetSlaves returns views over all configured slaves
func (c *Configuration) GetSlaves() []Slave { return c.slaves }

// GetSlave returns the view of the slave with the given name
func (c *Configuration) GetSlave(name string) (Slave, error) {
	for _, slave := range c.slaves {
		if slave.name == name {
			return slave, nil
		}
	}
	return Slave{}, fmt.Errorf("%w : slave %q", ethercat.ErrEntryNotFound, name)
}

// Master describes the <Master> element
type Master struct {
	name string
}

func (m Master) GetName() string { return m.name }

// Cyclic describes the <Cyclic> element
type Cyclic struct {
	cycleTime time.Duration
}

// CycleTime returns the bus cycle duration
func (c Cyclic) CycleTime() time.Duration { return c.cycleTime }

// parseDataType resolves an ENI DataType string, with the entry's bit
// length as a fallback shape hint when the name is absent
func parseDataType(name string, bitLen int, path string) (coe.Builtin, error) {
	if strings.TrimSpace(name) == "" {
		// Some exporters omit DataType for padding entries; fall back
		// to an unsigned type of the advertised width
		switch bitLen {
		case 1:
			return coe.Builtin{Id: coe.Bit}, nil
		case 8:
			return coe.Builtin{Id: coe.UnsignedShortInt}, nil
		case 16:
			return coe.Builtin{Id: coe.UnsignedInt}, nil
		case 32:
			return coe.Builtin{Id: coe.UnsignedDoubleInt}, nil
		case 64:
			return coe.Builtin{Id: coe.UnsignedLongInt}, nil
		}
		return coe.Builtin{}, ethercat.NewEniError(path, "missing DataType and no width fallback for %d bits", bitLen)
	}
	builtin, err := coe.Parse(name)
	if err != nil {
		return coe.Builtin{}, ethercat.NewEniError(path, "unsupported DataType %q", name)
	}
	return builtin, nil
}

// Package registry expands logical metric configs into the flat set of
// physical metrics and validates them in development mode. Grounded on
// pkg/slotcache/open.go's ordered-field Options validation and the
// sentinel-error convention in root errors.go.
package registry

import (
	"crypto/md5"
	"fmt"

	"github.com/messagemedia/shmop/internal/codec"
	"github.com/messagemedia/shmop/pkg/errkind"
	"github.com/messagemedia/shmop/pkg/logger"
)

// InstanceDomainNull is the PCP null instance-domain sentinel.
const InstanceDomainNull int32 = -1

// Metric type names recognized in a Config.
const (
	TypeCounter = "counter"
	TypeTimer   = "timer"
)

// timingFields is the fixed, ordered list of physical field suffixes a
// timer expands into.
var timingFields = []string{
	"service_time",
	"time_taken_0",
	"time_taken_1",
	"time_taken_2",
	"time_taken_3",
	"time_taken_4",
	"time_taken_5",
	"timings_count",
}

// Config is one logical metric configuration. Item and Instance are
// pointers so "absent" is distinguishable from "explicitly zero".
type Config struct {
	Type     string
	Name     string
	Cluster  int
	Item     *int
	Instance *int
}

// Descriptor is one physical metric: a single data-segment slot with a
// PCP identifier triple. Counters produce one Descriptor; timers
// produce eight, named "<name>.<field>".
type Descriptor struct {
	Name     string
	Type     codec.Type
	Cluster  uint16
	Item     uint16
	Instance int32
}

// Registry holds the immutable set of physical descriptors expanded
// from a logical config list: descriptors are created at construction
// and immutable thereafter.
type Registry struct {
	Descriptors []Descriptor
	byName      map[string]Descriptor
}

// ByName looks up a physical descriptor by its expanded name.
func (r *Registry) ByName(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Expand builds a Registry from configs. In development mode it runs
// the ordered validation pipeline, logging and dropping the offending
// config on first failure; outside development mode, validation is
// skipped for performance and configs are trusted as-is.
//
// Input configs are never mutated: expansion always produces a new
// Descriptor list.
func Expand(configs []Config, developmentMode bool, log logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop{}
	}

	reg := &Registry{byName: make(map[string]Descriptor)}
	seenTriples := make(map[string]bool)

	for _, cfg := range configs {
		if developmentMode {
			if !validate(cfg, seenTriples, log) {
				continue
			}
		}

		for _, d := range expandOne(cfg) {
			if _, dup := reg.byName[d.Name]; dup {
				log.Warnf("registry: duplicate physical name %q, keeping first registration", d.Name)
				continue
			}

			reg.byName[d.Name] = d
			reg.Descriptors = append(reg.Descriptors, d)
		}
	}

	return reg
}

// validate applies the ordered config checks, logging and returning
// false on the first failure.
func validate(cfg Config, seenTriples map[string]bool, log logger.Logger) bool {
	if cfg.Type != TypeCounter && cfg.Type != TypeTimer {
		log.Warnf("registry: %v: type must be %q or %q, got %q", errkind.ConfigInvalid, TypeCounter, TypeTimer, cfg.Type)
		return false
	}

	if cfg.Name == "" {
		log.Warnf("registry: %v: name must be non-empty", errkind.ConfigInvalid)
		return false
	}

	if cfg.Cluster < 0 || cfg.Cluster > 65535 {
		log.Warnf("registry: %v: cluster %d out of range [0,65535]", errkind.ConfigInvalid, cfg.Cluster)
		return false
	}

	item := 0
	if cfg.Type != TypeTimer {
		if cfg.Item == nil {
			log.Warnf("registry: %v: item is required for counters", errkind.ConfigInvalid)
			return false
		}
		item = *cfg.Item
	} else if cfg.Item != nil {
		item = *cfg.Item
	}

	if item < 0 || item > 65535 {
		log.Warnf("registry: %v: item %d out of range [0,65535]", errkind.ConfigInvalid, item)
		return false
	}

	instance := int(InstanceDomainNull)
	if cfg.Instance != nil {
		instance = *cfg.Instance
		if instance < -2147483648 || instance > 2147483647 {
			log.Warnf("registry: %v: instance %d out of range", errkind.ConfigInvalid, instance)
			return false
		}
	}

	triple := tripleKey(cfg.Cluster, item, instance)
	if seenTriples[triple] {
		log.Warnf("registry: dropping %q: duplicate triple {cluster:%d item:%d instance:%d}", cfg.Name, cfg.Cluster, item, instance)
		return false
	}
	seenTriples[triple] = true

	return true
}

func tripleKey(cluster, item, instance int) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d\x00%d\x00%d", cluster, item, instance)))
	return fmt.Sprintf("%x", sum)
}

func expandOne(cfg Config) []Descriptor {
	cluster := uint16(cfg.Cluster)

	instance := InstanceDomainNull
	if cfg.Instance != nil {
		instance = int32(*cfg.Instance)
	}

	if cfg.Type == TypeCounter {
		item := uint16(0)
		if cfg.Item != nil {
			item = uint16(*cfg.Item)
		}

		return []Descriptor{{
			Name: cfg.Name, Type: codec.Uint32, Cluster: cluster, Item: item, Instance: instance,
		}}
	}

	baseItem := 0
	if cfg.Item != nil {
		baseItem = *cfg.Item
	}

	descriptors := make([]Descriptor, 0, len(timingFields))
	for i, field := range timingFields {
		descriptors = append(descriptors, Descriptor{
			Name:     fmt.Sprintf("%s.%s", cfg.Name, field),
			Type:     codec.Uint32,
			Cluster:  cluster,
			Item:     uint16(baseItem + i),
			Instance: instance,
		})
	}

	return descriptors
}

// TimingFieldName returns the physical name for the given timing field
// index (0=service_time, 1..6=time_taken_0..5, 7=timings_count), used
// by the facade to address individual timer slots without re-deriving
// the naming scheme itself.
func TimingFieldName(base string, index int) string {
	return fmt.Sprintf("%s.%s", base, timingFields[index])
}

// TimingFieldCount is the fixed number of physical metrics a timer
// expands into.
const TimingFieldCount = 8

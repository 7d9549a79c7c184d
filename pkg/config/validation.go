package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags first, then the cross references between
// disks, stores and volumes that tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	stores := make(map[string]bool, len(cfg.Stores))
	for _, s := range cfg.Stores {
		stores[s.Name] = true
	}

	names := make(map[string]bool)
	for i, d := range cfg.Disks {
		field := fmt.Sprintf("disks[%d]", i)
		if d.Name != "" {
			field = fmt.Sprintf("disk %q", d.Name)
			if names[d.Name] {
				return fmt.Errorf("%s: duplicate name", field)
			}
			names[d.Name] = true
		}
		if err := validateDisk(d, stores); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		for _, v := range d.Volumes {
			if names[v.Name] {
				return fmt.Errorf("%s: duplicate volume name %q", field, v.Name)
			}
			names[v.Name] = true
		}
	}

	return nil
}

func validateDisk(d DiskConfig, stores map[string]bool) error {
	if d.SectorSize&(d.SectorSize-1) != 0 {
		return fmt.Errorf("sector_size %d is not a power of two", d.SectorSize)
	}

	switch d.Driver {
	case "ram":
		if d.Size.Sectors(d.SectorSize) == 0 {
			return fmt.Errorf("ram disk needs a size of at least one sector")
		}
	case "image":
		if d.Image.Path == "" {
			return fmt.Errorf("image driver needs image.path")
		}
		if d.Image.Create && d.Size.Sectors(d.SectorSize) == 0 {
			return fmt.Errorf("image.create needs a size of at least one sector")
		}
	case "object":
		if d.Object.Store == "" {
			return fmt.Errorf("object driver needs object.store")
		}
		if d.Object.Volume == "" && d.Name == "" {
			return fmt.Errorf("object disk needs a name or object.volume")
		}
		if !stores[d.Object.Store] {
			return fmt.Errorf("unknown store %q", d.Object.Store)
		}
		if d.Size.Sectors(d.SectorSize) == 0 {
			return fmt.Errorf("object disk needs a size of at least one sector")
		}
		if d.Object.ExtentSize != 0 && uint64(d.Object.ExtentSize)%uint64(d.SectorSize) != 0 {
			return fmt.Errorf("object.extent_size must be a multiple of sector_size")
		}
	}

	if d.RateLimit.BytesPerSecond == 0 && d.RateLimit.Burst != 0 {
		return fmt.Errorf("rate_limit.burst set without bytes_per_second")
	}

	return nil
}

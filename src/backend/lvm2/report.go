package lvm2

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"snapset/src/cmdrun"
	"snapset/src/snapset"
)

// lv_attr positions and flags we care about.
const (
	attrTypeIdx  = 0
	attrStateIdx = 4
	attrOpenIdx  = 5

	attrCowSnap   = 's'
	attrThinVol   = 'V'
	attrCowOrigin = 'o'
	attrDefault   = '-'
	attrActive    = 'a'
	attrInvalid   = 'I'
	attrOpen      = 'o'
)

const lvsFields = "vg_name,lv_name,lv_attr,origin,pool_lv,lv_size,data_percent,lv_role"

type lvInfo struct {
	VGName      string `json:"vg_name"`
	LVName      string `json:"lv_name"`
	LVAttr      string `json:"lv_attr"`
	Origin      string `json:"origin"`
	PoolLV      string `json:"pool_lv"`
	LVSize      string `json:"lv_size"`
	DataPercent string `json:"data_percent"`
	LVRole      string `json:"lv_role"`
}

type lvsReport struct {
	Report []struct {
		LV []lvInfo `json:"lv"`
	} `json:"report"`
}

type vgInfo struct {
	VGName string `json:"vg_name"`
	VGFree string `json:"vg_free"`
}

type vgsReport struct {
	Report []struct {
		VG []vgInfo `json:"vg"`
	} `json:"report"`
}

func (lv lvInfo) active() bool {
	return len(lv.LVAttr) > attrStateIdx && lv.LVAttr[attrStateIdx] == attrActive
}

func (lv lvInfo) invalid() bool {
	return len(lv.LVAttr) > attrStateIdx && lv.LVAttr[attrStateIdx] == attrInvalid
}

func (lv lvInfo) open() bool {
	return len(lv.LVAttr) > attrOpenIdx && lv.LVAttr[attrOpenIdx] == attrOpen
}

func (lv lvInfo) thin() bool {
	return len(lv.LVAttr) > attrTypeIdx && lv.LVAttr[attrTypeIdx] == attrThinVol
}

func (lv lvInfo) vgLV() string { return lv.VGName + "/" + lv.LVName }

// listLVs runs `lvs --reportformat json` for one vg/lv (or everything when
// target is empty) and returns the parsed rows.
func listLVs(ctx context.Context, run cmdrun.Runner, backend, target string) ([]lvInfo, error) {
	args := []string{"--reportformat", "json", "--units", "b", "--options", lvsFields}
	if target != "" {
		args = append(args, target)
	}
	out, err := run.Run(ctx, "lvs", args...)
	if err != nil {
		if exit, ok := err.(*cmdrun.ExitError); ok && notFoundOutput(exit.Stderr) {
			return nil, nil
		}
		return nil, &snapset.BackendError{Backend: backend, Op: "lvs", Err: err}
	}
	var rep lvsReport
	if err := json.Unmarshal(out, &rep); err != nil {
		return nil, &snapset.BackendError{Backend: backend, Op: "parse lvs report", Err: err}
	}
	var lvs []lvInfo
	for _, r := range rep.Report {
		lvs = append(lvs, r.LV...)
	}
	return lvs, nil
}

// findLV returns the single lvs row for vg/lv, or nil when it is absent.
func findLV(ctx context.Context, run cmdrun.Runner, backend, vgLV string) (*lvInfo, error) {
	lvs, err := listLVs(ctx, run, backend, vgLV)
	if err != nil {
		return nil, err
	}
	if len(lvs) == 0 {
		return nil, nil
	}
	return &lvs[0], nil
}

// vgFreeSpace returns the free bytes in a volume group.
func vgFreeSpace(ctx context.Context, run cmdrun.Runner, backend, vgName string) (uint64, error) {
	out, err := run.Run(ctx, "vgs",
		"--reportformat", "json", "--units", "b", "--options", "vg_name,vg_free", vgName)
	if err != nil {
		return 0, &snapset.BackendError{Backend: backend, Op: "vgs", Err: err}
	}
	var rep vgsReport
	if err := json.Unmarshal(out, &rep); err != nil {
		return 0, &snapset.BackendError{Backend: backend, Op: "parse vgs report", Err: err}
	}
	for _, r := range rep.Report {
		for _, vg := range r.VG {
			if vg.VGName == vgName {
				return parseReportBytes(vg.VGFree)
			}
		}
	}
	return 0, &snapset.NotFoundError{Kind: "volume group", Name: vgName}
}

// parseReportBytes parses LVM byte-unit report values such as "1073741824B".
func parseReportBytes(s string) (uint64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "B")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse LVM size %q: %w", s, err)
	}
	return n, nil
}

// parseDataPercent parses an lvs data_percent value ("17.25") into used
// bytes against the given size.
func parseDataPercent(pct string, size uint64) uint64 {
	pct = strings.TrimSpace(pct)
	if pct == "" {
		return 0
	}
	f, err := strconv.ParseFloat(pct, 64)
	if err != nil {
		return 0
	}
	return uint64(f / 100 * float64(size))
}

// splitVGLV splits "vg0/root" into its group and volume parts.
func splitVGLV(source string) (vg, lv string, err error) {
	parts := strings.Split(strings.TrimPrefix(source, "/dev/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid LVM volume source %q: expected vg/lv", source)
	}
	return parts[0], parts[1], nil
}

// notFoundOutput recognizes LVM "not found" diagnostics, which several
// operations treat as success or absence rather than failure.
func notFoundOutput(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "failed to find") || strings.Contains(s, "not found")
}

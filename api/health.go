package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// hostStatus describes the machine results are saved on. Fields are omitted
// when the probe fails.
type hostStatus struct {
	CPUPercent   *float64 `json:"cpu_percent,omitempty"`
	MemAvailable *uint64  `json:"mem_available,omitempty"`
	DiskFree     *uint64  `json:"disk_free,omitempty"`
	DiskLow      bool     `json:"disk_low"`
}

func (h *Handler) probeHost() hostStatus {
	var st hostStatus
	if p, err := cpu.Percent(0, false); err == nil && len(p) > 0 {
		st.CPUPercent = &p[0]
	} else if err != nil {
		h.logger.Debug("cpu probe failed", "error", err)
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		st.MemAvailable = &vm.Available
	} else {
		h.logger.Debug("memory probe failed", "error", err)
	}

	dir := h.cfg.DownloadDir
	if dir == "" {
		dir = "."
	}
	if d, err := disk.Usage(dir); err == nil {
		st.DiskFree = &d.Free
		st.DiskLow = h.cfg.MinFreeDisk > 0 && d.Free < uint64(h.cfg.MinFreeDisk)
	} else {
		h.logger.Warn("disk probe failed", "dir", dir, "error", err)
	}
	return st
}

// handleHealth always answers 200; a low disk is reported, not failed, since
// conversions themselves do not need local space.
func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "host": h.probeHost()})
}

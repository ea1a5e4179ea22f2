// Package disc turns optical media into ordered title records.
//
// It owns the HandBrake scan invocation (with the no-dvdnav retry for
// damaged discs), the scan report parser, device label discovery via lsblk,
// the udev-backed wait for disc insertion, and tray ejection. Everything
// downstream consumes the TitleRecord contract; the scan dialect stays
// private to this package.
package disc

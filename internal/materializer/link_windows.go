//go:build windows
// +build windows

package materializer

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	sequential "github.com/moby/sys/sequential"
	"golang.org/x/sys/windows"
)

// symlinksAvailable is sticky per process: once directory symlinks are
// observed to fail with a permission error, every subsequent link call in
// this process goes straight to junctions rather than retrying and failing
// again (spec's "the choice is sticky per process via an atomic flag").
var symlinksAvailable int32 = 1 // 1 = unknown/try, 0 = known unavailable

func hardlinkTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if err := os.Link(path, target); err != nil {
			return sequentialCopyFile(path, target)
		}
		return nil
	})
}

func sequentialCopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := sequential.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = copyAll(out, in)
	return err
}

func copyAll(dst *os.File, src *os.File) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if rerr != nil {
			if rerr.Error() == "EOF" {
				return total, nil
			}
			return total, rerr
		}
	}
}

// linkEntry creates a directory symlink, falling back to an NTFS junction
// (absolute target, reparse point) when symlink creation is denied —
// typically because the process lacks SeCreateSymbolicLinkPrivilege.
func linkEntry(target, linkPath string) error {
	_ = os.RemoveAll(linkPath)
	if err := os.MkdirAll(filepath.Dir(linkPath), 0o755); err != nil {
		return err
	}
	if atomic.LoadInt32(&symlinksAvailable) == 1 {
		if err := os.Symlink(target, linkPath); err == nil {
			return nil
		} else if !os.IsPermission(err) {
			return err
		}
		atomic.StoreInt32(&symlinksAvailable, 0)
	}
	return createJunction(target, linkPath)
}

// createJunction lays down an NTFS junction reparse point at linkPath
// pointing at the absolute path target, via the same
// FSCTL_SET_REPARSE_POINT mechanism Windows' own mklink /J uses.
func createJunction(target, linkPath string) error {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	if err := os.Mkdir(linkPath, 0o755); err != nil {
		return err
	}

	h, err := windows.CreateFile(
		windows.StringToUTF16Ptr(linkPath),
		windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_FLAG_OPEN_REPARSE_POINT|windows.FILE_FLAG_BACKUP_SEMANTICS,
		0,
	)
	if err != nil {
		_ = os.Remove(linkPath)
		return err
	}
	defer windows.CloseHandle(h)

	reparseTarget := `\??\` + absTarget
	buf := encodeMountPointReparseBuffer(reparseTarget)
	var bytesReturned uint32
	return windows.DeviceIoControl(h, windows.FSCTL_SET_REPARSE_POINT, &buf[0], uint32(len(buf)), nil, 0, &bytesReturned, nil)
}

// encodeMountPointReparseBuffer builds a REPARSE_DATA_BUFFER for
// IO_REPARSE_TAG_MOUNT_POINT, the structure a junction's reparse point
// carries: substitute name, print name (display form), both UTF-16.
func encodeMountPointReparseBuffer(substituteName string) []byte {
	sub := windows.StringToUTF16(substituteName)
	print := windows.StringToUTF16(substituteName[4:]) // strip "\??\" for display
	subBytes := utf16Bytes(sub[:len(sub)-1])
	printBytes := utf16Bytes(print[:len(print)-1])

	pathBufLen := len(subBytes) + 2 + len(printBytes) + 2
	const headerLen = 8 + 8 // ReparseTag+DataLength+Reserved, then the 4 mount-point-specific uint16 offsets
	buf := make([]byte, headerLen+pathBufLen)

	const IO_REPARSE_TAG_MOUNT_POINT = 0xA0000003
	putUint32(buf[0:], IO_REPARSE_TAG_MOUNT_POINT)
	putUint16(buf[4:], uint16(8+pathBufLen))
	// buf[6:8] reserved

	substituteOffset := 0
	substituteLen := len(subBytes)
	printOffset := substituteLen + 2
	printLen := len(printBytes)
	putUint16(buf[8:], uint16(substituteOffset))
	putUint16(buf[10:], uint16(substituteLen))
	putUint16(buf[12:], uint16(printOffset))
	putUint16(buf[14:], uint16(printLen))

	copy(buf[16:], subBytes)
	copy(buf[16+substituteLen+2:], printBytes)
	return buf
}

func utf16Bytes(u []uint16) []byte {
	b := make([]byte, len(u)*2)
	for i, v := range u {
		putUint16(b[i*2:], v)
	}
	return b
}

func putUint16(b []byte, v uint16) { *(*uint16)(unsafe.Pointer(&b[0])) = v }
func putUint32(b []byte, v uint32) { *(*uint32)(unsafe.Pointer(&b[0])) = v }

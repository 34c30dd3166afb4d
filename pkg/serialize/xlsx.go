package serialize

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/screenlab/reports/pkg/constants"
	"github.com/screenlab/reports/pkg/schema"
)

const (
	xlsxSheetName = "Sheet1"

	// maxRowsPerFile is the sheet row limit minus the header row
	maxRowsPerFile = 1048575

	// maxImageRowsPerFile caps sheets with embedded images; image
	// anchoring makes large sheets prohibitively slow to open
	maxImageRowsPerFile = 2000
)

// XLSXOptions control header naming, list rendering, and image embedding
type XLSXOptions struct {
	UseTitles bool
	RawLists  bool

	// ImageFetcher loads the bytes behind a resolved image URI for cell
	// embedding; when nil the URI itself is written as the cell value.
	ImageFetcher func(uri string) ([]byte, error)
}

// WriteXLSX consumes the source into one or more workbook files under
// dir, starting a new file whenever the per-file row cap is reached.
// Returns the written file paths in order.
func WriteXLSX(dir string, source RowSource, fields []*schema.FieldDescriptor, opts XLSXOptions) ([]string, error) {
	defer source.Close()

	var imageKeys []string
	if opts.ImageFetcher != nil {
		for _, f := range fields {
			if f.IsImage() {
				imageKeys = append(imageKeys, f.Key)
			}
		}
	}

	rowCap := maxRowsPerFile
	if len(imageKeys) > 0 {
		rowCap = maxImageRowsPerFile
	}

	var (
		files   []string
		current *workbook
		err     error
	)
	cleanup := func() {
		if current != nil {
			current.discard()
		}
		for _, path := range files {
			os.Remove(path)
		}
	}

	for source.Next() {
		if current != nil && current.rows >= rowCap {
			if err = current.save(); err != nil {
				cleanup()
				return nil, err
			}
			files = append(files, current.path)
			current = nil
		}
		if current == nil {
			current, err = newWorkbook(dir, fields, opts, len(imageKeys) > 0)
			if err != nil {
				cleanup()
				return nil, err
			}
		}
		if err = current.writeRow(source.Row(), fields, imageKeys, opts); err != nil {
			log.Printf("ERROR: writing row %v: %v", source.Row(), err)
			cleanup()
			return nil, err
		}
	}
	if err = source.Err(); err != nil {
		cleanup()
		return nil, err
	}

	if current == nil {
		// header-only file for an empty result
		current, err = newWorkbook(dir, fields, opts, len(imageKeys) > 0)
		if err != nil {
			cleanup()
			return nil, err
		}
	}
	if err = current.save(); err != nil {
		cleanup()
		return nil, err
	}
	files = append(files, current.path)
	return files, nil
}

// workbook is one output file in progress. Image-free output goes
// through the stream writer; sheets with embedded images use the
// regular cell API, which AddPictureFromBytes requires.
type workbook struct {
	file   *excelize.File
	stream *excelize.StreamWriter
	path   string
	rows   int
}

func newWorkbook(dir string, fields []*schema.FieldDescriptor, opts XLSXOptions, withImages bool) (*workbook, error) {
	f := excelize.NewFile()
	wb := &workbook{
		file: f,
		path: filepath.Join(dir, uuid.NewString()+".xlsx"),
	}

	header := make([]interface{}, len(fields))
	for i, fd := range fields {
		header[i] = headerName(fd, opts.UseTitles)
	}

	if withImages {
		if err := f.SetSheetRow(xlsxSheetName, "A1", &header); err != nil {
			wb.discard()
			return nil, err
		}
		return wb, nil
	}

	sw, err := f.NewStreamWriter(xlsxSheetName)
	if err != nil {
		wb.discard()
		return nil, err
	}
	wb.stream = sw
	if err := sw.SetRow("A1", header); err != nil {
		wb.discard()
		return nil, err
	}
	return wb, nil
}

func (wb *workbook) writeRow(row map[string]interface{}, fields []*schema.FieldDescriptor, imageKeys []string, opts XLSXOptions) error {
	wb.rows++
	rowNum := wb.rows + 1 // header occupies row 1

	values := make([]interface{}, len(fields))
	for i, f := range fields {
		values[i] = renderValue(row[f.Key], opts.RawLists)
	}

	if wb.stream != nil {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		return wb.stream.SetRow(cell, values)
	}

	images := make(map[string]bool, len(imageKeys))
	for _, key := range imageKeys {
		images[key] = true
	}
	for i, f := range fields {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if images[f.Key] && row[f.Key] != nil {
			if err := wb.embedImage(cell, stringValue(row[f.Key]), opts.ImageFetcher); err != nil {
				return err
			}
			continue
		}
		if err := wb.file.SetCellValue(xlsxSheetName, cell, values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (wb *workbook) embedImage(cell, uri string, fetch func(string) ([]byte, error)) error {
	data, err := fetch(uri)
	if err != nil {
		// a missing image is a null cell, not a failed export
		log.Printf("WARN: image %s not embeddable: %v", uri, err)
		return nil
	}
	ext := filepath.Ext(uri)
	if ext == "" {
		ext = ".png"
	}
	return wb.file.AddPictureFromBytes(xlsxSheetName, cell, &excelize.Picture{
		Extension: ext,
		File:      data,
	})
}

func (wb *workbook) save() error {
	if wb.stream != nil {
		if err := wb.stream.Flush(); err != nil {
			wb.discard()
			return err
		}
	}
	if err := wb.file.SaveAs(wb.path); err != nil {
		wb.discard()
		return err
	}
	return wb.file.Close()
}

func (wb *workbook) discard() {
	wb.file.Close()
	os.Remove(wb.path)
}

// PackageFiles prepares the export for download: a single workbook is
// returned as-is, several are zipped into one archive. Returns the path
// to stream, its content type, and the suggested download filename.
func PackageFiles(dir string, files []string, baseName string) (string, string, string, error) {
	if len(files) == 1 {
		return files[0], constants.XLSXMimeType, baseName + ".xlsx", nil
	}

	archivePath := filepath.Join(dir, uuid.NewString()+".zip")
	archive, err := os.Create(archivePath)
	if err != nil {
		return "", "", "", err
	}

	zw := zip.NewWriter(archive)
	for i, path := range files {
		entry, err := zw.Create(fmt.Sprintf("%s_%d.xlsx", baseName, i+1))
		if err != nil {
			archive.Close()
			os.Remove(archivePath)
			return "", "", "", err
		}
		src, err := os.Open(path)
		if err != nil {
			archive.Close()
			os.Remove(archivePath)
			return "", "", "", err
		}
		_, err = io.Copy(entry, src)
		src.Close()
		if err != nil {
			archive.Close()
			os.Remove(archivePath)
			return "", "", "", err
		}
	}
	if err := zw.Close(); err != nil {
		archive.Close()
		os.Remove(archivePath)
		return "", "", "", err
	}
	if err := archive.Close(); err != nil {
		os.Remove(archivePath)
		return "", "", "", err
	}

	for _, path := range files {
		os.Remove(path)
	}
	return archivePath, constants.ZipMimeType, baseName + ".zip", nil
}

// OpenAndRemove opens path for streaming and deletes it when the
// returned reader is closed.
func OpenAndRemove(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &removeOnClose{File: f, path: path}, nil
}

type removeOnClose struct {
	*os.File
	path string
}

func (r *removeOnClose) Close() error {
	err := r.File.Close()
	if rerr := os.Remove(r.path); err == nil {
		err = rerr
	}
	return err
}

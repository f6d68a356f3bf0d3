package gamedata

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/DrMcCoy/cokteladl2vgm/internal/bread"
	"github.com/DrMcCoy/cokteladl2vgm/internal/cokerr"
)

const (
	totHeaderSize    = 128
	totResTableSize  = 2 + 1 // itemsCount (i16) + unknown (u8)
	totResItemSize   = 4 + 2 + 2 + 2
	extResTableSize  = 2 + 1
	extResItemSize   = 4 + 2 + 2 + 2
)

// resourceKind distinguishes where a TOT or EXT resource's bytes live.
type resourceKind int

const (
	resourceTOT resourceKind = iota
	resourceIM
	resourceEXT
	resourceEX
)

type totProperties struct {
	versionMajor, versionMinor uint8
	variablesCount             uint32
	textsOffset, resourcesOffset uint32
	animDataSize               uint16
	imFileNumber, exFileNumber, communHandling byte
	functions                  [14]uint16
	scriptEnd                  uint32
	textsSize, resourcesSize   uint32
}

type totResourceItem struct {
	offset int32
	size   uint16
	width  int16
	height int16
	kind   resourceKind
	index  int32
}

type extResourceItem struct {
	offset uint32
	size   uint16
	width  uint16
	height uint16
	kind   resourceKind
	packed bool
}

// TOTFile is a loaded script resource bundle: a mandatory .tot file plus
// up to three optional companions (.ext, commun.imN, commun.exN), each
// resolved through the owning GameDir's archive/direct-file lookup.
type TOTFile struct {
	name    string
	gameDir *GameDir

	totData []byte
	extData []byte
	imData  []byte
	exData  []byte

	props totProperties

	totItems   []totResourceItem
	totDataOfs uint32
	hasTOTRes  bool

	extItems  []extResourceItem
	hasEXTRes bool
}

// OpenTOT loads name's .tot file (and whatever companions exist) from g.
// A missing .ext/.im/.ex companion is not an error: a missing .ext leaves
// the EXT resource table empty, and a missing commun.im/commun.ex only
// makes reads of the items stored there fail.
func OpenTOT(g *GameDir, name string) (*TOTFile, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))

	totData, err := g.GetFile(base + ".tot")
	if err != nil {
		return nil, cokerr.Wrap(cokerr.Open, err, "loading TOT %q", base)
	}

	t := &TOTFile{name: base, gameDir: g, totData: totData}

	if err := t.loadProperties(); err != nil {
		return nil, err
	}

	if ext, err := g.GetFile(base + ".ext"); err == nil {
		t.extData = ext
	}

	t.hasTOTRes = t.loadTOTResourceTable()
	t.hasEXTRes = t.loadEXTResourceTable()

	if t.hasTOTRes {
		num := t.props.imFileNumber
		if num == 0 {
			num = 1
		}
		if im, err := g.GetFile("commun.im" + strconv.Itoa(int(num))); err == nil {
			t.imData = im
		}
	}

	if t.hasEXTRes {
		if ex, err := g.GetFile("commun.ex" + strconv.Itoa(int(t.props.exFileNumber))); err == nil {
			t.exData = ex
		}
	}

	return t, nil
}

// Name returns the bundle's base name, without extension.
func (t *TOTFile) Name() string {
	return t.name
}

func (t *TOTFile) loadProperties() error {
	r := bread.New(t.totData)
	if r.Size() < totHeaderSize {
		return cokerr.New(cokerr.Format, "TOT %q too small for header (%d bytes)", t.name, r.Size())
	}

	if err := r.Seek(39); err != nil {
		return err
	}
	versionMajor, err := r.Byte()
	if err != nil {
		return err
	}
	dot, err := r.Byte()
	if err != nil {
		return err
	}
	if dot != '.' {
		return cokerr.New(cokerr.Format, "TOT %q has invalid version marker", t.name)
	}
	versionMinor, err := r.Byte()
	if err != nil {
		return err
	}
	t.props.versionMajor = versionMajor - '0'
	t.props.versionMinor = versionMinor - '0'

	if err := r.Seek(44); err != nil {
		return err
	}
	if t.props.variablesCount, err = r.Uint32(); err != nil {
		return err
	}
	if t.props.textsOffset, err = r.Uint32(); err != nil {
		return err
	}
	if t.props.resourcesOffset, err = r.Uint32(); err != nil {
		return err
	}
	if t.props.animDataSize, err = r.Uint16(); err != nil {
		return err
	}

	if err := r.Seek(59); err != nil {
		return err
	}
	if t.props.imFileNumber, err = r.Byte(); err != nil {
		return err
	}
	if t.props.exFileNumber, err = r.Byte(); err != nil {
		return err
	}
	if t.props.communHandling, err = r.Byte(); err != nil {
		return err
	}

	if err := r.Seek(100); err != nil {
		return err
	}
	for i := 0; i < 14; i++ {
		if t.props.functions[i], err = r.Uint16(); err != nil {
			return err
		}
	}

	fileSize := uint32(len(t.totData))
	textsOffset := t.props.textsOffset
	resourcesOffset := t.props.resourcesOffset

	if textsOffset == 0xFFFFFFFF {
		textsOffset = 0
	}
	if resourcesOffset == 0xFFFFFFFF {
		resourcesOffset = 0
	}

	t.props.scriptEnd = fileSize
	if textsOffset > 0 && textsOffset < t.props.scriptEnd {
		t.props.scriptEnd = textsOffset
	}
	if resourcesOffset > 0 && resourcesOffset < t.props.scriptEnd {
		t.props.scriptEnd = resourcesOffset
	}

	switch {
	case textsOffset > 0 && resourcesOffset > 0:
		if t.props.textsOffset > resourcesOffset {
			t.props.textsSize = fileSize - textsOffset
			t.props.resourcesSize = textsOffset - resourcesOffset
		} else {
			t.props.textsSize = resourcesOffset - textsOffset
			t.props.resourcesSize = fileSize - resourcesOffset
		}
	case textsOffset > 0:
		t.props.textsSize = fileSize - textsOffset
		t.props.resourcesSize = 0
	case resourcesOffset > 0:
		t.props.textsSize = 0
		t.props.resourcesSize = fileSize - resourcesOffset
	default:
		t.props.textsSize = 0
		t.props.resourcesSize = 0
	}

	return nil
}

func (t *TOTFile) loadTOTResourceTable() bool {
	if t.props.resourcesOffset == 0xFFFFFFFF || t.props.resourcesOffset == 0 {
		return false
	}

	ofs := t.props.resourcesOffset
	if int(ofs)+2 > len(t.totData) {
		return false
	}

	r := bread.New(t.totData)
	if err := r.Seek(int64(ofs)); err != nil {
		return false
	}
	count16, err := r.Int16()
	if err != nil {
		return false
	}
	count := count16

	resSize := uint32(count)*totResItemSize + totResTableSize
	if ofs+resSize > uint32(len(t.totData)) {
		return false
	}

	t.totDataOfs = ofs + resSize

	if err := r.Seek(int64(ofs) + 2 + 1); err != nil { // skip count + unknown byte
		return false
	}

	items := make([]totResourceItem, count)
	for i := range items {
		offset, err := r.Int32()
		if err != nil {
			return false
		}
		size, err := r.Uint16()
		if err != nil {
			return false
		}
		width, err := r.Int16()
		if err != nil {
			return false
		}
		height, err := r.Int16()
		if err != nil {
			return false
		}

		item := totResourceItem{offset: offset, size: size, width: width, height: height}
		if offset < 0 {
			item.kind = resourceIM
			item.index = -offset - 1
		} else {
			item.kind = resourceTOT
		}
		items[i] = item
	}

	t.totItems = items
	return true
}

func (t *TOTFile) loadEXTResourceTable() bool {
	if len(t.extData) < extResTableSize {
		return false
	}

	r := bread.New(t.extData)
	count, err := r.Int16()
	if err != nil || count <= 0 {
		return true
	}

	if err := r.Seek(3); err != nil {
		return true
	}

	items := make([]extResourceItem, 0, count)
	for i := int16(0); i < count; i++ {
		if r.Len() < extResItemSize {
			break
		}

		offset, _ := r.Uint32()
		size, _ := r.Uint16()
		width, _ := r.Uint16()
		height, _ := r.Uint16()

		item := extResourceItem{size: size, width: width, height: height}
		if int32(offset) < 0 {
			item.kind = resourceEX
			item.offset = uint32(-int32(offset) - 1)
		} else {
			item.kind = resourceEXT
			item.offset = offset + extResTableSize + extResItemSize*uint32(count)
		}

		item.packed = item.width&0x8000 != 0
		item.width &= 0x7FFF

		items = append(items, item)
	}

	t.extItems = items
	return true
}

// TOTResourceCount returns the number of items in the TOT resource table,
// 0 if there is none.
func (t *TOTFile) TOTResourceCount() int {
	if !t.hasTOTRes {
		return 0
	}
	return len(t.totItems)
}

// EXTResourceCount returns the number of items in the EXT resource table,
// 0 if there is none.
func (t *TOTFile) EXTResourceCount() int {
	if !t.hasEXTRes {
		return 0
	}
	return len(t.extItems)
}

// GetTOTResource reads one item from the TOT resource table, following an
// IM reference if the item's offset was negative.
func (t *TOTFile) GetTOTResource(id int) ([]byte, error) {
	if !t.hasTOTRes || id < 0 || id >= len(t.totItems) {
		return nil, cokerr.New(cokerr.Format, "no such TOT resource %d in %q", id, t.name)
	}

	item := t.totItems[id]

	switch item.kind {
	case resourceIM:
		return t.getIMData(item)
	case resourceTOT:
		return t.getTOTData(item)
	default:
		return nil, cokerr.New(cokerr.Format, "invalid TOT resource type %d", item.kind)
	}
}

func (t *TOTFile) getTOTData(item totResourceItem) ([]byte, error) {
	if item.size == 0 {
		return nil, cokerr.New(cokerr.Format, "TOT item has size 0")
	}

	offset := int(t.totDataOfs) + int(item.offset)
	if offset < 0 || offset+int(item.size) > len(t.totData) {
		return nil, cokerr.New(cokerr.Seek, "TOT item offset %d out of range", offset)
	}

	return t.totData[offset : offset+int(item.size)], nil
}

func (t *TOTFile) getIMData(item totResourceItem) ([]byte, error) {
	if t.imData == nil {
		return nil, cokerr.New(cokerr.Open, "no IM file for %q", t.name)
	}
	if item.size == 0 {
		return nil, cokerr.New(cokerr.Format, "TOT item has size 0")
	}

	indexOffset := int64(item.index) * 4
	r := bread.New(t.imData)
	if err := r.Seek(indexOffset); err != nil {
		return nil, cokerr.Wrap(cokerr.Seek, err, "IM index %d out of range", item.index)
	}
	offsetU32, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	offset := int(offsetU32)

	if offset < 0 || offset+int(item.size) > len(t.imData) {
		return nil, cokerr.New(cokerr.Seek, "IM offset %d out of range", offset)
	}

	return t.imData[offset : offset+int(item.size)], nil
}

// GetEXTResource reads one item from the EXT resource table, decompressing
// it if the bundle marked it packed.
func (t *TOTFile) GetEXTResource(id int) ([]byte, error) {
	if !t.hasEXTRes || id < 0 || id >= len(t.extItems) {
		return nil, cokerr.New(cokerr.Format, "no such EXT resource %d in %q", id, t.name)
	}

	item := t.extItems[id]

	size := uint32(item.size)
	if item.width&0x4000 != 0 {
		size += 1 << 16
	}
	if item.width&0x2000 != 0 {
		size += 2 << 16
	}
	if item.width&0x1000 != 0 {
		size += 4 << 16
	}
	if item.height == 0 {
		size += uint32(item.width) << 16
	}

	var data []byte
	var err error
	switch item.kind {
	case resourceEXT:
		data, err = t.readCompanion(t.extData, item, size)
	case resourceEX:
		data, err = t.readCompanion(t.exData, item, size)
	default:
		return nil, cokerr.New(cokerr.Format, "invalid EXT resource type %d", item.kind)
	}
	if err != nil {
		return nil, err
	}

	if !item.packed {
		return data, nil
	}

	return Unpack(data, 1)
}

func (t *TOTFile) readCompanion(companion []byte, item extResourceItem, size uint32) ([]byte, error) {
	if companion == nil {
		return nil, cokerr.New(cokerr.Open, "no EXT/EX companion file for %q", t.name)
	}

	offset := int(item.offset)
	if offset < 0 || offset > len(companion) {
		return nil, cokerr.New(cokerr.Seek, "EXT/EX item offset %d out of range", offset)
	}

	avail := uint32(len(companion) - offset)
	if size > avail {
		size = avail
	}

	readSize := size
	if item.packed {
		readSize += 2
	}
	if int(readSize) > len(companion)-offset {
		readSize = uint32(len(companion) - offset)
	}

	return companion[offset : offset+int(readSize)], nil
}

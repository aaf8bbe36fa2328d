package kmknn

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/knncolle-go/kmknn/internal/metric"
)

// algorithmTag identifies this package's on-disk layout to the registry
// so LoadPrebuilt can dispatch to the right loader without the caller
// naming it explicitly.
const algorithmTag = "kmknn.Prebuilt"

// Save writes the index to one file per array/scalar under prefix: a
// blob-per-field layout under a shared path prefix, with each blob
// framed by an encoding/binary length header.
func (p *Prebuilt) Save(prefix string) error {
	if err := writeTag(prefix+"ALGORITHM", algorithmTag); err != nil {
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	if err := writeInt(prefix+"num_obs", p.obs); err != nil {
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	if err := writeInt(prefix+"num_dim", p.dim); err != nil {
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	if err := writeInt(prefix+"num_centers", len(p.sizes)); err != nil {
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	if err := writeFloat64s(prefix+"data", p.data); err != nil {
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	if err := writeInts(prefix+"sizes", p.sizes); err != nil {
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	if err := writeInts(prefix+"offsets", p.offsets); err != nil {
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	if err := writeFloat64s(prefix+"centers", p.centers); err != nil {
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	if err := writeInts(prefix+"observation_id", p.observationID); err != nil {
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	if err := writeInts(prefix+"new_location", p.newLocation); err != nil {
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	if err := writeFloat64s(prefix+"dist_to_centroid", p.distToCentroid); err != nil {
		return fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	if err := p.metric.Save(prefix + "distance_"); err != nil {
		return fmt.Errorf("%w: metric save: %s", ErrPersistence, err)
	}
	return nil
}

// LoadPrebuiltFromBlobs reconstructs a Prebuilt from the blob set written
// by Save. num_centers is read before any array and treated as
// authoritative: the sizes, offsets and centers lengths are checked
// against it, and the per-point arrays against num_obs and num_dim,
// rather than inferred.
func LoadPrebuiltFromBlobs(prefix string, m metric.Metric, opts Options) (*Prebuilt, error) {
	opts = opts.withDefaults()

	tag, err := readTag(prefix + "ALGORITHM")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	if tag != algorithmTag {
		return nil, fmt.Errorf("%w: on-disk tag %q, expected %q", ErrTagMismatch, tag, algorithmTag)
	}

	nobs, err := readInt(prefix + "num_obs")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	dim, err := readInt(prefix + "num_dim")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	numCenters, err := readInt(prefix + "num_centers")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}

	data, err := readFloat64s(prefix+"data", nobs*dim)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	sizes, err := readInts(prefix+"sizes", numCenters)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	offsets, err := readInts(prefix+"offsets", numCenters)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	centers, err := readFloat64s(prefix+"centers", numCenters*dim)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	observationID, err := readInts(prefix+"observation_id", nobs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	newLocation, err := readInts(prefix+"new_location", nobs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	distToCentroid, err := readFloat64s(prefix+"dist_to_centroid", nobs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}

	return &Prebuilt{
		dim:            dim,
		obs:            nobs,
		data:           data,
		metric:         m,
		sizes:          sizes,
		offsets:        offsets,
		centers:        centers,
		observationID:  observationID,
		newLocation:    newLocation,
		distToCentroid: distToCentroid,
		useUpperBound:  opts.UseUpperBound,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
	}, nil
}

// Load reconstructs a Prebuilt written by Save, resolving the metric
// from its own distance_ sub-prefix via the internal/metric registry
// rather than requiring the caller to already know which metric was
// used.
func Load(prefix string, opts Options) (*Prebuilt, error) {
	name, err := readTag(prefix + "distance_tag")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersistence, err)
	}
	m, err := metric.ByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCollaborator, err)
	}
	return LoadPrebuiltFromBlobs(prefix, m, opts)
}

func writeTag(path, tag string) error {
	return writeBytes(path, []byte(tag))
}

func readTag(path string) (string, error) {
	b, err := readBytes(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeBytes(path string, b []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint64(len(b))); err != nil {
		return err
	}
	_, err = f.Write(b)
	return err
}

func readBytes(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var n uint64
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := f.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeInt(path string, v int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return binary.Write(f, binary.LittleEndian, int64(v))
}

func readInt(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var v int64
	if err := binary.Read(f, binary.LittleEndian, &v); err != nil {
		return 0, err
	}
	return int(v), nil
}

func writeInts(path string, v []int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint64(len(v))); err != nil {
		return err
	}
	buf := make([]int64, len(v))
	for i, x := range v {
		buf[i] = int64(x)
	}
	return binary.Write(f, binary.LittleEndian, buf)
}

func readInts(path string, want int) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var n uint64
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if want >= 0 && int(n) != want {
		return nil, fmt.Errorf("%s: on-disk length %d does not match expected %d", path, n, want)
	}
	buf := make([]int64, n)
	if err := binary.Read(f, binary.LittleEndian, buf); err != nil {
		return nil, err
	}
	out := make([]int, n)
	for i, x := range buf {
		out[i] = int(x)
	}
	return out, nil
}

func writeFloat64s(path string, v []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint64(len(v))); err != nil {
		return err
	}
	return binary.Write(f, binary.LittleEndian, v)
}

func readFloat64s(path string, want int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var n uint64
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if want >= 0 && int(n) != want {
		return nil, fmt.Errorf("%s: on-disk length %d does not match expected %d", path, n, want)
	}
	buf := make([]float64, n)
	if err := binary.Read(f, binary.LittleEndian, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

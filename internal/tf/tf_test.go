package tf

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/frame_alignment/internal/geom"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func staticTF(parent, child string, tr geom.Transform) StampedTransform {
	return StampedTransform{Parent: parent, Child: child, Transform: tr, Static: true, Stamp: t0}
}

func translation(x, y, z float64) geom.Transform {
	return geom.Transform{Translation: geom.Vec3{X: x, Y: y, Z: z}, Rotation: geom.IdentityQuaternion()}
}

func TestResolve_SameFrameIsIdentity(t *testing.T) {
	d := NewDirectory(10*time.Second, 50*time.Millisecond)
	tr, err := d.Resolve("base_link", "base_link", t0)
	require.NoError(t, err)
	assert.Equal(t, geom.Identity(), tr)
}

func TestResolve_UnknownFrameIsUnavailable(t *testing.T) {
	d := NewDirectory(10*time.Second, 50*time.Millisecond)
	_, err := d.Resolve("gps", "base_link", t0)
	assert.ErrorIs(t, err, ErrFrameUnavailable)
}

func TestResolve_DirectStaticEdge(t *testing.T) {
	d := NewDirectory(10*time.Second, 50*time.Millisecond)
	require.NoError(t, d.Add(staticTF("base_link", "gps", translation(1, 0, 2))))

	tr, err := d.Resolve("gps", "base_link", t0.Add(time.Hour))
	require.NoError(t, err)
	p := tr.Apply(geom.Vec3{})
	assert.InDelta(t, 1.0, p.X, 1e-9)
	assert.InDelta(t, 2.0, p.Z, 1e-9)

	// The reverse query inverts the edge.
	back, err := d.Resolve("base_link", "gps", t0)
	require.NoError(t, err)
	q := back.Apply(geom.Vec3{})
	assert.InDelta(t, -1.0, q.X, 1e-9)
	assert.InDelta(t, -2.0, q.Z, 1e-9)
}

func TestResolve_SiblingFramesThroughCommonParent(t *testing.T) {
	d := NewDirectory(10*time.Second, 50*time.Millisecond)
	require.NoError(t, d.Add(staticTF("base_link", "gps", translation(1, 0, 0))))
	require.NoError(t, d.Add(staticTF("base_link", "velodyne", geom.Transform{
		Translation: geom.Vec3{X: 0, Y: 2},
		Rotation:    geom.QuaternionFromYaw(math.Pi / 2),
	})))

	// A point at the gps antenna seen from the lidar frame.
	tr, err := d.Resolve("gps", "velodyne", t0)
	require.NoError(t, err)
	p := tr.Apply(geom.Vec3{})
	// base_link (1,0) relative to lidar origin (0,2) is (1,-2); un-rotating
	// by 90° gives (-2,-1).
	assert.InDelta(t, -2.0, p.X, 1e-9)
	assert.InDelta(t, -1.0, p.Y, 1e-9)
}

func TestResolve_InterpolatesDynamicEdge(t *testing.T) {
	d := NewDirectory(10*time.Second, 50*time.Millisecond)
	require.NoError(t, d.Add(StampedTransform{Stamp: t0, Parent: "odom", Child: "base_link", Transform: translation(0, 0, 0)}))
	require.NoError(t, d.Add(StampedTransform{Stamp: t0.Add(time.Second), Parent: "odom", Child: "base_link", Transform: translation(10, 0, 0)}))

	tr, err := d.Resolve("base_link", "odom", t0.Add(300*time.Millisecond))
	require.NoError(t, err)
	assert.InDelta(t, 3.0, tr.Translation.X, 1e-9)
}

func TestResolve_OutsideBufferedRange(t *testing.T) {
	d := NewDirectory(10*time.Second, 50*time.Millisecond)
	require.NoError(t, d.Add(StampedTransform{Stamp: t0, Parent: "odom", Child: "base_link", Transform: translation(1, 0, 0)}))

	_, err := d.Resolve("base_link", "odom", t0.Add(20*time.Millisecond))
	assert.NoError(t, err, "within tolerance")

	_, err = d.Resolve("base_link", "odom", t0.Add(time.Second))
	assert.ErrorIs(t, err, ErrFrameUnavailable)

	_, err = d.Resolve("base_link", "odom", t0.Add(-time.Second))
	assert.ErrorIs(t, err, ErrFrameUnavailable)

	tr, err := d.Resolve("base_link", "odom", time.Time{})
	require.NoError(t, err, "zero stamp means latest")
	assert.InDelta(t, 1.0, tr.Translation.X, 1e-9)
}

func TestResolve_StaleUpperEdgeDoesNotBlockLowerQuery(t *testing.T) {
	d := NewDirectory(10*time.Second, 50*time.Millisecond)
	require.NoError(t, d.Add(StampedTransform{Stamp: t0, Parent: "odom", Child: "base_link", Transform: translation(5, 0, 0)}))
	require.NoError(t, d.Add(staticTF("base_link", "imu", translation(0, 0, 1))))

	_, err := d.Resolve("imu", "base_link", t0.Add(time.Minute))
	assert.NoError(t, err)

	_, err = d.Resolve("imu", "odom", t0.Add(time.Minute))
	assert.ErrorIs(t, err, ErrFrameUnavailable)
}

func TestAdd_Rejects(t *testing.T) {
	d := NewDirectory(10*time.Second, 50*time.Millisecond)
	assert.Error(t, d.Add(staticTF("", "gps", geom.Identity())))
	assert.Error(t, d.Add(staticTF("gps", "gps", geom.Identity())))

	require.NoError(t, d.Add(staticTF("base_link", "gps", geom.Identity())))
	assert.Error(t, d.Add(staticTF("map", "gps", geom.Identity())), "re-parenting")
	assert.Error(t, d.Add(staticTF("gps", "base_link", geom.Identity())), "cycle")
}

func TestAdd_PrunesOldSamples(t *testing.T) {
	d := NewDirectory(time.Second, 10*time.Millisecond)
	for i := 0; i < 50; i++ {
		require.NoError(t, d.Add(StampedTransform{
			Stamp:     t0.Add(time.Duration(i) * 100 * time.Millisecond),
			Parent:    "odom",
			Child:     "base_link",
			Transform: translation(float64(i), 0, 0),
		}))
	}

	_, err := d.Resolve("base_link", "odom", t0)
	assert.ErrorIs(t, err, ErrFrameUnavailable)

	tr, err := d.Resolve("base_link", "odom", t0.Add(4900*time.Millisecond))
	require.NoError(t, err)
	assert.InDelta(t, 49.0, tr.Translation.X, 1e-9)
}

func TestAddMessageAndFrames(t *testing.T) {
	d := NewDirectory(10*time.Second, 50*time.Millisecond)
	err := d.AddMessage(Message{Transforms: []StampedTransform{
		staticTF("base_link", "gps", geom.Identity()),
		staticTF("base_link", "imu", geom.Identity()),
		staticTF("", "bad", geom.Identity()),
	}})
	assert.Error(t, err)
	assert.Equal(t, []string{"gps", "imu"}, d.Frames())
}

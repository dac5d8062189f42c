package model

import (
	"sort"

	"github.com/Carmen-Shannon/gltf-runtime/common"

	"github.com/go-gl/mathgl/mgl32"
)

// FindBestFrames locates the keyframe pair bracketing wantedTime so that
// times[first] <= wantedTime <= times[second]. Times must be non-decreasing.
// Before the first keyframe both indices are 0; at or after the last keyframe both are the last index.
// The fraction is the normalized position of wantedTime between the two keyframes, and 0 when the
// indices are equal. An empty slice yields (0, 0, 0).
//
// Parameters:
//   - times: the keyframe timestamps
//   - wantedTime: the time to locate
//
// Returns:
//   - int: the first keyframe index
//   - int: the second keyframe index
//   - float32: the interpolation fraction in [0, 1]
func FindBestFrames(times []float32, wantedTime float32) (int, int, float32) {
	// NaN fails every comparison and lands here with the before-first case.
	if len(times) == 0 || !(wantedTime > times[0]) {
		return 0, 0, 0
	}
	last := len(times) - 1
	if wantedTime >= times[last] {
		return last, last, 0
	}

	// first index whose time is strictly after wantedTime; clamped to (0, last] for malformed times
	second := sort.Search(len(times), func(i int) bool {
		return times[i] > wantedTime
	})
	second = min(max(second, 1), last)
	first := second - 1

	span := times[second] - times[first]
	if !(span > 0) {
		return first, second, 0
	}
	return first, second, min(max((wantedTime-times[first])/span, 0), 1)
}

// SampleVector evaluates a vector track at the given time.
// Empty tracks return the fallback value.
//
// Parameters:
//   - track: the track to sample (may be nil)
//   - time: the sample time in seconds
//   - fallback: the value returned for nil or empty tracks
//
// Returns:
//   - mgl32.Vec3: the sampled value
func SampleVector(track *VectorTrack, time float32, fallback mgl32.Vec3) mgl32.Vec3 {
	if track == nil || len(track.Values) == 0 {
		return fallback
	}
	first, second, fraction := FindBestFrames(track.Times, time)
	if track.Interpolation == InterpolationStep || first == second {
		return track.Values[first]
	}
	a, b := track.Values[first], track.Values[second]
	return a.Add(b.Sub(a).Mul(fraction))
}

// SampleQuaternion evaluates a rotation track at the given time using spherical interpolation.
// Empty tracks return the fallback value.
//
// Parameters:
//   - track: the track to sample (may be nil)
//   - time: the sample time in seconds
//   - fallback: the value returned for nil or empty tracks
//
// Returns:
//   - mgl32.Quat: the sampled rotation
func SampleQuaternion(track *QuaternionTrack, time float32, fallback mgl32.Quat) mgl32.Quat {
	if track == nil || len(track.Values) == 0 {
		return fallback
	}
	first, second, fraction := FindBestFrames(track.Times, time)
	if track.Interpolation == InterpolationStep || first == second {
		return track.Values[first]
	}
	a, b := track.Values[first], track.Values[second]
	// take the short path
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl32.QuatSlerp(a, b, fraction).Normalize()
}

// Frames returns the keyframe count of the channel's densest track.
//
// Returns:
//   - int: the largest track length
func (c *AnimationChannel) Frames() int {
	n := 0
	if c.Translation != nil {
		n = max(n, len(c.Translation.Times))
	}
	if c.Rotation != nil {
		n = max(n, len(c.Rotation.Times))
	}
	if c.Scale != nil {
		n = max(n, len(c.Scale.Times))
	}
	return n
}

// EndTime returns the last keyframe time across the channel's tracks.
//
// Returns:
//   - float32: the largest keyframe time, or 0 for empty channels
func (c *AnimationChannel) EndTime() float32 {
	var end float32
	if c.Translation != nil && len(c.Translation.Times) > 0 {
		end = max(end, c.Translation.Times[len(c.Translation.Times)-1])
	}
	if c.Rotation != nil && len(c.Rotation.Times) > 0 {
		end = max(end, c.Rotation.Times[len(c.Rotation.Times)-1])
	}
	if c.Scale != nil && len(c.Scale.Times) > 0 {
		end = max(end, c.Scale.Times[len(c.Scale.Times)-1])
	}
	return end
}

// Sample evaluates every track of the channel at the given time. Components without a track keep
// the value from rest.
//
// Parameters:
//   - time: the sample time in seconds
//   - rest: the transform used for undriven components
//
// Returns:
//   - common.Transform: the sampled local transform
func (c *AnimationChannel) Sample(time float32, rest common.Transform) common.Transform {
	return common.Transform{
		Translation: SampleVector(c.Translation, time, rest.Translation),
		Rotation:    SampleQuaternion(c.Rotation, time, rest.Rotation),
		Scale:       SampleVector(c.Scale, time, rest.Scale),
	}
}

// ChannelForBone returns the channel driving the named bone, or nil.
//
// Parameters:
//   - name: the bone name
//
// Returns:
//   - *AnimationChannel: the matching channel or nil
func (a *AnimationClip) ChannelForBone(name string) *AnimationChannel {
	for i := range a.Channels {
		if a.Channels[i].BoneName == name {
			return &a.Channels[i]
		}
	}
	return nil
}

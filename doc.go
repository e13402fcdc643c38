/*
Package flow allows to build lazy pull-based pipelines of frame processing
stages.

Concept

Pipeline is a chain of stages. Every stage consumes zero or more input
frames and produces one output frame:

    Importer - loads a frame from a file;
    Filter - computes a frame from input frames;
    Exporter - encodes input frame into a file;
    Streamer - loads numbered files in the background.

Nothing is executed when pipeline is built. Consumer asks for the output
to be updated and the request walks backward through the chain. Every
stage is executed only if it's stale: newly configured, modified with a
setter or any of its inputs produced a new frame since the last execution.

Components

Stages embed Process and implement Executor:

    imp := importer.New(flow.WithDevices(devices))
    imp.SetFilename("lena.png")

    gain := flow.NewFilter(func(ctx context.Context, d *device.Device, in []*flow.Frame) (*flow.Frame, error) {
        ...
    })
    gain.SetInput(imp.Output())

    err := gain.Output().Update(ctx)

Output returns a handle without doing any work. Update on the handle
forwards to the owning stage. Failed execution leaves the stage dirty, so
the next update retries it.

Streaming

Streamer produces frames from numbered files in its own goroutine and
appends them to a DynamicImage. The first update blocks until the first
frame is buffered. See package stream for details.

Devices

Every stage executes on a device. The device is either provided
explicitly or resolved once from the device manager at first execution.
*/
package flow

// Package publish uploads the files a processed trial leaves on disk back to
// the OpenCap server.
//
// Static trials publish the scaled model and their kinematics. Dynamic trials
// publish kinematics and marker data. Both then upload the visualization
// transforms. With ReplaceExisting, results sharing a tag are deleted before
// the new upload so the server keeps only the latest copy.
package publish
